// Package cidutil derives the content identifiers used for model blobs.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256CID returns a CIDv1 with the raw codec and a sha2-256 multihash of data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// CIDv1RawSHA256 is CIDv1RawSHA256CID in string form, or "" on error.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// Parse decodes s and rejects the undefined CID.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid cid %q: %w", s, err)
	}
	if !id.Defined() {
		return cid.Undef, fmt.Errorf("invalid cid %q: undefined", s)
	}
	return id, nil
}

// Verify reports an error unless data hashes to id.
func Verify(id cid.Cid, data []byte) error {
	got, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return fmt.Errorf("cid mismatch: have %s, data hashes to %s", id, got)
	}
	return nil
}
