package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/keys"
)

func token(t *testing.T, exp time.Time) string {
	claims := Claims{Email: "a@b.c", StandardClaims: jwt.StandardClaims{Subject: "42"}}
	if !exp.IsZero() {
		claims.ExpiresAt = exp.Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestStorePersistAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	st, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, Session{}, st.Current())

	require.NoError(t, st.Update(func(s *Session) {
		s.Token = "tok"
		s.SuiAddress = "0x1"
		s.Theme = "dark"
	}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", reopened.Current().Token)
	assert.Equal(t, "dark", reopened.Current().Theme)

	require.NoError(t, reopened.Clear())
	assert.Equal(t, Session{}, reopened.Current())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, reopened.Clear())
}

func TestCurrentIsACopy(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)
	cur := st.Current()
	cur.Token = "changed"
	assert.Empty(t, st.Current().Token)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()

	live := Session{Token: token(t, now.Add(time.Hour))}
	exp, ok, err := live.TokenExpiry()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())
	assert.False(t, live.Expired(now))
	assert.True(t, live.LoggedIn(now))

	old := Session{Token: token(t, now.Add(-time.Minute))}
	assert.True(t, old.Expired(now))
	assert.False(t, old.LoggedIn(now))

	forever := Session{Token: token(t, time.Time{})}
	_, ok, err = forever.TokenExpiry()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, forever.Expired(now))

	claims, err := live.Claims()
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", claims.Email)

	assert.True(t, Session{Token: "garbage"}.Expired(now))
	assert.False(t, Session{}.LoggedIn(now))
}

func TestEphemeralKeypair(t *testing.T) {
	_, err := Session{}.EphemeralKeypair()
	assert.Error(t, err)

	seed := make([]byte, 32)
	seed[0] = 1
	exported, err := keys.ExportPrivateKey(seed)
	require.NoError(t, err)
	kp, err := Session{EphemeralSeed: exported}.EphemeralKeypair()
	require.NoError(t, err)
	want, err := keys.AddressFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, want, kp.Address())
}
