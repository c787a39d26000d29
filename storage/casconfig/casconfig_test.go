package casconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/casregistry"
	_ "suiml.io/suiml/storage/localfs"
)

func TestValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Backends: []BackendConfig{{}}}.Validate())
	assert.Error(t, Config{Backends: []BackendConfig{{Name: "localfs"}, {Name: "localfs"}}}.Validate())
	assert.Error(t, Config{WritePolicy: "some", Backends: []BackendConfig{{Name: "localfs"}}}.Validate())
	assert.NoError(t, Config{Backends: []BackendConfig{{Name: "localfs"}, {Name: "localfs", ID: "b"}}}.Validate())
}

func TestOpenMirrorWritesEverywhere(t *testing.T) {
	ctx := context.Background()
	dirA, dirB := t.TempDir(), t.TempDir()
	cfg := Config{
		WritePolicy: WriteAll,
		Backends: []BackendConfig{
			{Name: "localfs", ID: "a", Config: map[string]string{"localfs-dir": dirA}},
			{Name: "localfs", ID: "b", Config: map[string]string{"localfs-dir": dirB}},
		},
	}
	s, closeFn, err := cfg.Open(casregistry.UsageCLI, "")
	require.NoError(t, err)
	defer closeFn()

	m, ok := s.(storage.Mirror)
	require.True(t, ok)
	id, per, err := m.PutAll(ctx, []byte("model"))
	require.NoError(t, err)
	assert.Len(t, per, 2)

	for _, dir := range []string{dirA, dirB} {
		matches, err := filepath.Glob(filepath.Join(dir, "*", id.String()))
		require.NoError(t, err)
		assert.Len(t, matches, 1, dir)
	}
}

func TestOpenPreferredAndCache(t *testing.T) {
	ctx := context.Background()
	dirA, dirB := t.TempDir(), t.TempDir()
	path := filepath.Join(t.TempDir(), "cas.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"cache_bytes": 1048576,
		"backends": [
			{"name": "localfs", "id": "a", "config": {"localfs-dir": "`+dirA+`"}},
			{"name": "localfs", "id": "b", "config": {"localfs-dir": "`+dirB+`"}}
		]
	}`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	s, closeFn, err := cfg.Open(casregistry.UsageCLI, "b")
	require.NoError(t, err)
	defer closeFn()
	_, ok := s.(*storage.Cached)
	require.True(t, ok)

	id, err := s.Put(ctx, []byte("model"))
	require.NoError(t, err)

	matches, _ := filepath.Glob(filepath.Join(dirB, "*", id.String()))
	assert.Len(t, matches, 1)
	matches, _ = filepath.Glob(filepath.Join(dirA, "*", id.String()))
	assert.Empty(t, matches)

	_, _, err = cfg.Open(casregistry.UsageCLI, "missing")
	assert.Error(t, err)
}
