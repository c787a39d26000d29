// Package storage defines the content-addressed blob store that holds
// quantized model files, plus combinators for fallback reads, mirrored
// writes and in-memory caching.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// BlobStore stores immutable blobs keyed by the CIDv1 (raw, sha2-256) of
// their bytes.
//
// Put is idempotent and returns the CID of the bytes written. Get returns
// ErrNotFound for an absent CID and ErrCIDMismatch if the stored bytes no
// longer hash to the requested CID.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

// Lister is implemented by stores that can enumerate their contents.
// The returned CIDs are sorted by their string form.
type Lister interface {
	List(ctx context.Context) ([]cid.Cid, error)
}

// Closer releases resources held by an opened store. It may be nil-safe no-op.
type Closer func() error

// NopCloser is a Closer that does nothing.
func NopCloser() error { return nil }
