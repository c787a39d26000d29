// Package bcs implements the subset of Binary Canonical Serialization used to
// build Sui transaction data: little-endian fixed-width integers, ULEB128
// length prefixes, byte sequences, strings, and vectors.
//
// Encoding is deterministic: the same value always produces the same bytes,
// which is what makes the intent digest (and therefore the signature) stable.
package bcs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxSequenceLength is the largest length prefix BCS accepts (2^31 - 1).
const MaxSequenceLength = 1<<31 - 1

// Marshaler is implemented by composite types that know their own layout.
type Marshaler interface {
	MarshalBCS(e *Encoder) error
}

// Encoder appends BCS bytes to an in-memory buffer.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) U8(v uint8) { e.buf.WriteByte(v) }

func (e *Encoder) Bool(v bool) {
	if v {
		e.buf.WriteByte(1)
		return
	}
	e.buf.WriteByte(0)
}

func (e *Encoder) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// ULEB128 writes v as an unsigned LEB128 varint.
func (e *Encoder) ULEB128(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			e.buf.WriteByte(b)
			return
		}
		e.buf.WriteByte(b | 0x80)
	}
}

// Length writes a sequence length prefix.
func (e *Encoder) Length(n int) error {
	if n < 0 || n > MaxSequenceLength {
		return fmt.Errorf("bcs: sequence length %d out of range", n)
	}
	e.ULEB128(uint64(n))
	return nil
}

// FixedBytes writes b without a length prefix (fixed-size arrays such as addresses).
func (e *Encoder) FixedBytes(b []byte) { e.buf.Write(b) }

// ByteVector writes a length-prefixed byte sequence (vector<u8>).
func (e *Encoder) ByteVector(b []byte) error {
	if err := e.Length(len(b)); err != nil {
		return err
	}
	e.buf.Write(b)
	return nil
}

// String writes a length-prefixed UTF-8 string.
func (e *Encoder) String(s string) error {
	return e.ByteVector([]byte(s))
}

// U64Vector writes vector<u64>.
func (e *Encoder) U64Vector(v []uint64) error {
	if err := e.Length(len(v)); err != nil {
		return err
	}
	for _, x := range v {
		e.U64(x)
	}
	return nil
}

// U64Matrix writes vector<vector<u64>>.
func (e *Encoder) U64Matrix(v [][]uint64) error {
	if err := e.Length(len(v)); err != nil {
		return err
	}
	for _, row := range v {
		if err := e.U64Vector(row); err != nil {
			return err
		}
	}
	return nil
}

// Value writes a Marshaler.
func (e *Encoder) Value(m Marshaler) error {
	return m.MarshalBCS(e)
}

// Marshal encodes m into a fresh byte slice.
func Marshal(m Marshaler) ([]byte, error) {
	e := NewEncoder()
	if err := m.MarshalBCS(e); err != nil {
		return nil, err
	}
	return append([]byte(nil), e.Bytes()...), nil
}

// PureU64 returns the BCS bytes of a u64 pure argument.
func PureU64(v uint64) []byte {
	e := NewEncoder()
	e.U64(v)
	return e.Bytes()
}

// PureU64Vector returns the BCS bytes of a vector<u64> pure argument.
func PureU64Vector(v []uint64) ([]byte, error) {
	e := NewEncoder()
	if err := e.U64Vector(v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// PureU64Matrix returns the BCS bytes of a vector<vector<u64>> pure argument.
func PureU64Matrix(v [][]uint64) ([]byte, error) {
	e := NewEncoder()
	if err := e.U64Matrix(v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// PureString returns the BCS bytes of a std::string::String pure argument.
func PureString(s string) ([]byte, error) {
	e := NewEncoder()
	if err := e.String(s); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}
