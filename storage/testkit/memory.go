package testkit

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/storage"
)

// Memory is an in-process storage.BlobStore for tests. It counts calls so
// tests can assert on read-through and fallback behavior.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte

	Puts int
	Gets int
}

var (
	_ storage.BlobStore = (*Memory)(nil)
	_ storage.Lister    = (*Memory)(nil)
)

func NewMemory() *Memory { return &Memory{blobs: map[string][]byte{}} }

func (m *Memory) Put(_ context.Context, data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	m.blobs[id.String()] = append([]byte(nil), data...)
	return id, nil
}

func (m *Memory) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	b, ok := m.blobs[id.String()]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Has(_ context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[id.String()]
	return ok, nil
}

func (m *Memory) List(context.Context) ([]cid.Cid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]cid.Cid{}
	for k := range m.blobs {
		id, err := cid.Decode(k)
		if err != nil {
			return nil, err
		}
		out[k] = id
	}
	return storage.SortedCIDs(out), nil
}
