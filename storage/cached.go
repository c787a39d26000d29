package storage

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/ipfs/go-cid"
)

// Cached is a read-through cache in front of a BlobStore. Blobs are
// immutable, so cached entries never need invalidation; the cost of an entry
// is its size in bytes.
type Cached struct {
	Store BlobStore
	cache *ristretto.Cache
}

var _ BlobStore = (*Cached)(nil)

// NewCached wraps store with a cache holding at most maxBytes of blob data.
func NewCached(store BlobStore, maxBytes int64) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{Store: store, cache: cache}, nil
}

func (c *Cached) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := c.Store.Put(ctx, data)
	if err != nil {
		return cid.Undef, err
	}
	c.cache.Set(id.KeyString(), append([]byte(nil), data...), int64(len(data)))
	return id, nil
}

func (c *Cached) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	if v, ok := c.cache.Get(id.KeyString()); ok {
		return append([]byte(nil), v.([]byte)...), nil
	}
	b, err := c.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(id.KeyString(), append([]byte(nil), b...), int64(len(b)))
	return b, nil
}

func (c *Cached) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if _, ok := c.cache.Get(id.KeyString()); ok {
		return true, nil
	}
	return c.Store.Has(ctx, id)
}

func (c *Cached) List(ctx context.Context) ([]cid.Cid, error) {
	if l, ok := c.Store.(Lister); ok {
		return l.List(ctx)
	}
	return nil, nil
}

// Wait blocks until buffered cache writes are applied.
func (c *Cached) Wait() { c.cache.Wait() }

func (c *Cached) Close() error {
	c.cache.Close()
	return nil
}
