package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/testkit"
)

func TestMemory_Conformance(t *testing.T) {
	testkit.RunConformance(t, func(t *testing.T) storage.BlobStore { return testkit.NewMemory() })
}

func TestFallback_Conformance(t *testing.T) {
	testkit.RunConformance(t, func(t *testing.T) storage.BlobStore {
		return storage.Fallback{Stores: []storage.BlobStore{testkit.NewMemory(), testkit.NewMemory()}}
	})
}

func TestMirror_Conformance(t *testing.T) {
	testkit.RunConformance(t, func(t *testing.T) storage.BlobStore {
		return storage.Mirror{Backends: []storage.Named{
			{Name: "a", Store: testkit.NewMemory()},
			{Name: "b", Store: testkit.NewMemory()},
		}}
	})
}

func TestCached_Conformance(t *testing.T) {
	testkit.RunConformance(t, func(t *testing.T) storage.BlobStore {
		c, err := storage.NewCached(testkit.NewMemory(), 1<<20)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}

func TestFallback_ReadsInOrderWritesFirst(t *testing.T) {
	ctx := context.Background()
	a, b := testkit.NewMemory(), testkit.NewMemory()
	f := storage.Fallback{Stores: []storage.BlobStore{a, b}}

	onlyB, err := b.Put(ctx, []byte("in b"))
	require.NoError(t, err)

	got, err := f.Get(ctx, onlyB)
	require.NoError(t, err)
	assert.Equal(t, []byte("in b"), got)

	_, err = f.Put(ctx, []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Puts)
	assert.Equal(t, 1, b.Puts)

	ids, err := f.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	_, err = storage.Fallback{}.Put(ctx, []byte("x"))
	assert.ErrorIs(t, err, storage.ErrNoBackends)
}

func TestCached_ServesRepeatReadsFromMemory(t *testing.T) {
	ctx := context.Background()
	mem := testkit.NewMemory()
	id, err := mem.Put(ctx, []byte("weights"))
	require.NoError(t, err)

	c, err := storage.NewCached(mem, 1<<20)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, id)
	require.NoError(t, err)
	c.Wait()
	_, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Gets)
}

func TestAsError(t *testing.T) {
	assert.Nil(t, storage.AsError("get", nil))
	err := storage.AsError("get model", storage.ErrNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "get model")
}
