package model

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"suiml.io/suiml/storage"
)

// PutModel stores the canonical bytes of m and returns their CID.
func PutModel(ctx context.Context, s storage.BlobStore, m QuantizedModel) (cid.Cid, error) {
	b, err := m.Canonical()
	if err != nil {
		return cid.Undef, err
	}
	id, err := s.Put(ctx, b)
	if err != nil {
		return cid.Undef, storage.AsError("store model", err)
	}
	return id, nil
}

// GetModel loads and validates the model stored under id.
func GetModel(ctx context.Context, s storage.BlobStore, id cid.Cid) (QuantizedModel, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return QuantizedModel{}, storage.AsError(fmt.Sprintf("load model %s", id), err)
	}
	return Load(bytes.NewReader(b))
}
