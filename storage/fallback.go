package storage

import (
	"context"
	"sort"

	"github.com/ipfs/go-cid"
)

// Fallback reads from its stores in slice order and writes only to the first.
// The order is fixed by the caller so retrieval is deterministic.
type Fallback struct {
	Stores []BlobStore
}

var _ BlobStore = Fallback{}

func (f Fallback) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(f.Stores) == 0 {
		return cid.Undef, ErrNoBackends
	}
	return f.Stores[0].Put(ctx, data)
}

func (f Fallback) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return getInOrder(ctx, id, f.Stores)
}

func (f Fallback) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return hasAny(ctx, id, f.Stores)
}

func (f Fallback) List(ctx context.Context) ([]cid.Cid, error) {
	return listUnion(ctx, f.Stores)
}

func getInOrder(ctx context.Context, id cid.Cid, stores []BlobStore) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	for _, s := range stores {
		if s == nil {
			continue
		}
		b, err := s.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func hasAny(ctx context.Context, id cid.Cid, stores []BlobStore) (bool, error) {
	var firstErr error
	for _, s := range stores {
		if s == nil {
			continue
		}
		ok, err := s.Has(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, firstErr
}

func listUnion(ctx context.Context, stores []BlobStore) ([]cid.Cid, error) {
	seen := map[string]cid.Cid{}
	for _, s := range stores {
		l, ok := s.(Lister)
		if !ok {
			continue
		}
		ids, err := l.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen[id.String()] = id
		}
	}
	return SortedCIDs(seen), nil
}

// SortedCIDs returns the values of m ordered by key.
func SortedCIDs(m map[string]cid.Cid) []cid.Cid {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cid.Cid, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
