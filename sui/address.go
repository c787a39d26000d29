package sui

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"suiml.io/suiml/bcs"
)

// AddressLength is the byte length of addresses and object ids.
const AddressLength = 32

// Address is a 32-byte account address. Object ids share the representation.
type Address [AddressLength]byte

// ObjectID identifies an on-chain object.
type ObjectID = Address

// ParseAddress accepts "0x"-prefixed or bare hex, left-padding short forms
// such as "0x2".
func ParseAddress(s string) (Address, error) {
	var a Address
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if h == "" || len(h) > 2*AddressLength {
		return a, fmt.Errorf("sui: invalid address %q", s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return a, fmt.Errorf("sui: invalid address %q: %w", s, err)
	}
	copy(a[AddressLength-len(b):], b)
	return a, nil
}

// MustParseAddress is ParseAddress for constants; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Address) MarshalBCS(e *bcs.Encoder) error {
	e.FixedBytes(a[:])
	return nil
}

// Digest is a 32-byte object or transaction digest, base58 on the wire.
type Digest [32]byte

func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := base58.Decode(s)
	if err != nil {
		return d, fmt.Errorf("sui: invalid digest %q: %w", s, err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("sui: digest %q has %d bytes, want %d", s, len(b), len(d))
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string { return base58.Encode(d[:]) }

func (d Digest) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Digest) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDigest(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalBCS writes the digest as vector<u8>.
func (d Digest) MarshalBCS(e *bcs.Encoder) error {
	return e.ByteVector(d[:])
}

// ObjectRef pins a specific version of an owned or immutable object.
type ObjectRef struct {
	ObjectID ObjectID `json:"objectId"`
	Version  uint64   `json:"version"`
	Digest   Digest   `json:"digest"`
}

func (r ObjectRef) MarshalBCS(e *bcs.Encoder) error {
	if err := r.ObjectID.MarshalBCS(e); err != nil {
		return err
	}
	e.U64(r.Version)
	return r.Digest.MarshalBCS(e)
}
