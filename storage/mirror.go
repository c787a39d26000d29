package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"suiml.io/suiml/cidutil"
)

// Named pairs a store with a stable backend name for reporting.
type Named struct {
	Name  string
	Store BlobStore
}

// Mirror writes every blob to all of its backends and reads in order.
// A write succeeds only if every backend returns the CID computed locally.
type Mirror struct {
	Backends []Named
}

var _ BlobStore = Mirror{}

// PutAll writes data to every backend and reports the CID each one returned.
func (m Mirror) PutAll(ctx context.Context, data []byte) (cid.Cid, map[string]cid.Cid, error) {
	if len(m.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, nil, err
	}

	out := make(map[string]cid.Cid, len(m.Backends))
	for _, b := range m.Backends {
		if b.Store == nil {
			return cid.Undef, nil, fmt.Errorf("storage: backend %q has no store", b.Name)
		}
		got, err := b.Store.Put(ctx, data)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (m Mirror) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, _, err := m.PutAll(ctx, data)
	return id, err
}

func (m Mirror) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return getInOrder(ctx, id, m.stores())
}

func (m Mirror) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return hasAny(ctx, id, m.stores())
}

func (m Mirror) List(ctx context.Context) ([]cid.Cid, error) {
	return listUnion(ctx, m.stores())
}

func (m Mirror) stores() []BlobStore {
	out := make([]BlobStore, 0, len(m.Backends))
	for _, b := range m.Backends {
		out = append(out, b.Store)
	}
	return out
}
