// Package testkit holds the behavioral tests every storage.BlobStore must pass.
package testkit

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/storage"
)

// NewStore returns a fresh, empty store isolated from other tests.
type NewStore func(t *testing.T) storage.BlobStore

func RunConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte(`{"layerDimensions":[[4,2]],"scale":2}`)

		id, err := s.Put(ctx, want)
		require.NoError(t, err)
		wantID, err := cidutil.CIDv1RawSHA256CID(want)
		require.NoError(t, err)
		assert.True(t, wantID.Equals(id), "put returned %s want %s", id, wantID)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		id1, err := s.Put(ctx, []byte("same bytes"))
		require.NoError(t, err)
		id2, err := s.Put(ctx, []byte("same bytes"))
		require.NoError(t, err)
		assert.True(t, id1.Equals(id2))
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id, err := cidutil.CIDv1RawSHA256CID(b)
		require.NoError(t, err)

		ok, err := s.Has(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = s.Get(ctx, id)
		assert.True(t, storage.IsNotFound(err), "got %v", err)

		_, err = s.Put(ctx, b)
		require.NoError(t, err)
		ok, err = s.Has(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		ok, _ := s.Has(ctx, cid.Undef)
		assert.False(t, ok)
		_, err := s.Get(ctx, cid.Undef)
		assert.Error(t, err)
	})

	t.Run("ListContainsPut", func(t *testing.T) {
		s := newStore(t)
		l, ok := s.(storage.Lister)
		if !ok {
			t.Skip("store does not implement storage.Lister")
		}
		id, err := s.Put(ctx, []byte("listed"))
		require.NoError(t, err)
		ids, err := l.List(ctx)
		require.NoError(t, err)
		var found bool
		for _, got := range ids {
			found = found || got.Equals(id)
		}
		assert.True(t, found)
	})
}
