package localfs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunConformance(t, func(t *testing.T) storage.BlobStore {
		s, err := New(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestLocalFS_DetectsCorruptionAndRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	orig := []byte(`{"layerDimensions":[[2,1]]}`)
	id, err := s.Put(ctx, orig)
	require.NoError(t, err)

	path := s.pathFor(id)
	require.NoError(t, os.Chmod(path, 0o644))
	require.NoError(t, os.WriteFile(path, []byte("corrupted"), 0o644))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrCIDMismatch)

	_, err = s.Put(ctx, orig)
	assert.ErrorIs(t, err, storage.ErrImmutable)

	want, err := cidutil.CIDv1RawSHA256CID(orig)
	require.NoError(t, err)
	assert.True(t, want.Equals(id))
}

func TestLocalFS_ListSkipsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	a, err := s.Put(ctx, []byte("a"))
	require.NoError(t, err)
	b, err := s.Put(ctx, []byte("b"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dir+"/README", []byte("x"), 0o644))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	got := map[string]bool{ids[0].String(): true, ids[1].String(): true}
	assert.True(t, got[a.String()])
	assert.True(t, got[b.String()])
}
