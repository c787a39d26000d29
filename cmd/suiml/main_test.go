package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/keys"
	"suiml.io/suiml/model"
	"suiml.io/suiml/quant"
	"suiml.io/suiml/session"
	"suiml.io/suiml/sui"
)

// isolate points every on-disk location at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("SUIML_CONFIG", "")
	t.Setenv("SUIML_LOG_LEVEL", "DISABLED")
	t.Setenv("SUIML_KEY_DIR", filepath.Join(dir, "keys"))
	t.Setenv("SUIML_SESSION_PATH", filepath.Join(dir, "session.json"))
	t.Setenv("SUIML_STORAGE_LOCALFS_DIR", filepath.Join(dir, "blobs"))
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUsageAndUnknownCommand(t *testing.T) {
	isolate(t)

	code, _, _ := runCLI(t)
	assert.Equal(t, 2, code)

	code, out, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage:")

	code, _, errOut := runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command: frobnicate")

	code, _, _ = runCLI(t, "model", "nope")
	assert.Equal(t, 2, code)
}

func TestEncodeDecode(t *testing.T) {
	isolate(t)

	code, out, errOut := runCLI(t, "encode", "--scale", "2", "--", "1.5,-0.25")
	require.Equal(t, 0, code, errOut)
	var v quant.Vector
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, []uint64{150, 25}, v.Magnitude)
	assert.Equal(t, []uint8{0, 1}, v.Sign)

	code, out, errOut = runCLI(t, "decode", "--scale", "2", "--magnitude", "150,25", "--sign", "0,1")
	require.Equal(t, 0, code, errOut)
	var d model.DecodeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, []float64{1.5, -0.25}, d.Values)

	code, _, errOut = runCLI(t, "encode", "--scale", "2", "1e30")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "EncodingOverflow")
}

const floatModel = `{"layers": [
  {"name": "input", "type": "InputLayer"},
  {"name": "dense", "type": "Dense", "kernel": [[0.5, -0.25], [1.0, 0.125], [-2.0, 0.0]], "bias": [0.01, -0.02]},
  {"name": "dense_1", "type": "Dense", "kernel": [[1.5, 0.5], [-0.5, 0.25]]}
]}`

func TestModelConvertStoreAndBundle(t *testing.T) {
	dir := isolate(t)
	src := filepath.Join(dir, "float.json")
	require.NoError(t, os.WriteFile(src, []byte(floatModel), 0o644))
	quantized := filepath.Join(dir, "model.json")

	code, out, errOut := runCLI(t, "model", "convert", "--scale", "3", "--out", quantized, "--put", src)
	require.Equal(t, 0, code, errOut)
	var sum model.ModelSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 2, sum.Stats.TotalLayers)

	code, out, _ = runCLI(t, "model", "cid", quantized)
	require.Equal(t, 0, code)
	assert.Equal(t, sum.CID, strings.TrimSpace(out))

	code, out, _ = runCLI(t, "model", "validate", quantized)
	require.Equal(t, 0, code)
	assert.Equal(t, "OK\n", out)

	code, out, errOut = runCLI(t, "model", "get", sum.CID)
	require.Equal(t, 0, code, errOut)
	var got model.QuantizedModel
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, uint64(3), got.Scale)

	code, out, _ = runCLI(t, "model", "list")
	require.Equal(t, 0, code)
	assert.Equal(t, sum.CID+"\n", out)

	bundlePath := filepath.Join(dir, "models.tar")
	code, _, errOut = runCLI(t, "model", "export", "--out", bundlePath, sum.CID)
	require.Equal(t, 0, code, errOut)

	t.Setenv("SUIML_STORAGE_LOCALFS_DIR", filepath.Join(dir, "other"))
	code, out, errOut = runCLI(t, "model", "import", bundlePath)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, sum.CID+"\n", out)
}

func TestModelValidateRejectsBadModel(t *testing.T) {
	dir := isolate(t)
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"layerDimensions":[[2,1]],"weightsMagnitudes":[[1]],"weightsSigns":[[0]],"biasesMagnitudes":[[1]],"biasesSigns":[[0]],"scale":2}`), 0o644))

	code, _, errOut := runCLI(t, "model", "validate", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid")
}

func TestKeyLifecycle(t *testing.T) {
	isolate(t)
	seedHex := strings.Repeat("07", 32)
	seed, err := hex.DecodeString(seedHex)
	require.NoError(t, err)
	want, err := keys.AddressFromSeed(seed)
	require.NoError(t, err)

	code, out, errOut := runCLI(t, "key", "init", "--name", "alice", "--seed-hex", seedHex)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, want.String())

	code, out, _ = runCLI(t, "key", "address", "--name", "alice")
	require.Equal(t, 0, code)
	assert.Equal(t, want.String(), strings.TrimSpace(out))

	code, _, errOut = runCLI(t, "key", "derive", "--from", "alice", "--role", "predictor")
	require.Equal(t, 0, code, errOut)

	code, out, _ = runCLI(t, "key", "list")
	require.Equal(t, 0, code)
	assert.Equal(t, "alice\n  - predictor\n", out)

	code, out, _ = runCLI(t, "key", "export", "--name", "alice")
	require.Equal(t, 0, code)
	kp, err := sui.ParsePrivateKey(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, want, kp.Address())

	code, _, _ = runCLI(t, "key", "init", "--name", "alice", "--seed-hex", seedHex)
	assert.Equal(t, 1, code, "existing key without --force")

	code, _, _ = runCLI(t, "key", "init", "--name", "../x")
	assert.Equal(t, 2, code)
}

func TestPredictRejectsDimensionMismatchWithoutNetwork(t *testing.T) {
	isolate(t)
	var hits int32
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer node.Close()
	t.Setenv("SUIML_NETWORK_RPC_URL", node.URL)
	t.Setenv("SUIML_CONTRACT_PACKAGE_ID", "0x2")

	code, _, errOut := runCLI(t, "predict", "--model-id", "0xaa",
		"--layers", "3", "--dims", "2,2", "--magnitude", "1,2", "--sign", "0,0")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "EDimensionMismatch")
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestPredictNeedsPackage(t *testing.T) {
	isolate(t)
	code, _, errOut := runCLI(t, "predict", "--model-id", "0xaa",
		"--layers", "1", "--dims", "1", "--magnitude", "1", "--sign", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "contract.package_id")

	code, _, _ = runCLI(t, "predict")
	assert.Equal(t, 2, code)
}

func TestAuthLoginMeLogout(t *testing.T) {
	dir := isolate(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		Email:          "ada@example.com",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	be := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/me" || r.Header.Get("Authorization") != "Bearer "+tok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"email":"ada@example.com","created_at":"2024-01-01T00:00:00Z"}`))
	}))
	defer be.Close()
	t.Setenv("SUIML_BACKEND_BASE_URL", be.URL)

	code, _, _ := runCLI(t, "auth", "me")
	assert.Equal(t, 1, code, "no session yet")

	code, _, errOut := runCLI(t, "auth", "login", "--token", tok)
	require.Equal(t, 0, code, errOut)
	_, err = os.Stat(filepath.Join(dir, "session.json"))
	require.NoError(t, err)

	code, out, errOut := runCLI(t, "auth", "me")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "ada@example.com")

	code, _, _ = runCLI(t, "auth", "logout")
	require.Equal(t, 0, code)
	_, err = os.Stat(filepath.Join(dir, "session.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestAuthInitStoresEphemeralKey(t *testing.T) {
	dir := isolate(t)
	code, out, errOut := runCLI(t, "auth", "init", "--max-epoch", "12")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Ephemeral public key:")

	st, err := session.Open(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	sess := st.Current()
	assert.Equal(t, uint64(12), sess.MaxEpoch)
	kp, err := sess.EphemeralKeypair()
	require.NoError(t, err)

	code, out, _ = runCLI(t, "auth", "init")
	require.Equal(t, 0, code)
	assert.Contains(t, out, kp.ExtendedPublicKey(), "key is reused")
}

func TestDataListings(t *testing.T) {
	isolate(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		Email:          "ada@example.com",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	be := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/rewards/leaderboard":
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"entries":[{"user_id":1,"email":"ada@example.com","total_points":40,"total_contributions":4,"rank":1}],"total_users":1,"page":1,"size":3,"pages":1}`))
		case "/api/v1/annotations/":
			if r.Header.Get("Authorization") != "Bearer "+tok {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
				return
			}
			assert.Equal(t, "8", r.URL.Query().Get("image_id"))
			_, _ = w.Write([]byte(`{"items":[{"id":2,"image_id":8,"bbox":[0,0,4,4],"area":16,"status":"pending","source_type":"manual","created_at":"t0","updated_at":"t0"}],"total":1,"page":1,"limit":25,"pages":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer be.Close()
	t.Setenv("SUIML_BACKEND_BASE_URL", be.URL)

	code, out, errOut := runCLI(t, "data", "leaderboard", "--limit", "3")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"total_points": 40`)

	code, _, errOut = runCLI(t, "data", "annotations", "--image", "8")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Not authenticated")

	code, _, errOut = runCLI(t, "auth", "login", "--token", tok)
	require.Equal(t, 0, code, errOut)
	code, out, errOut = runCLI(t, "data", "annotations", "--image", "8")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"source_type": "manual"`)

	code, _, _ = runCLI(t, "data", "leaderboard", "--search", "x")
	assert.Equal(t, 2, code, "search is not a leaderboard flag")
}
