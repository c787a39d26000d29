package bcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULEB128(t *testing.T) {
	cases := []struct {
		in   uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, c := range cases {
		e := NewEncoder()
		e.ULEB128(c.in)
		assert.Equal(t, c.want, e.Bytes(), "ULEB128(%d)", c.in)
	}
}

func TestFixedWidthLittleEndian(t *testing.T) {
	e := NewEncoder()
	e.U8(0xab)
	e.U16(0x0102)
	e.U32(0x01020304)
	e.U64(0x0102030405060708)
	e.Bool(true)
	e.Bool(false)
	assert.Equal(t, []byte{
		0xab,
		0x02, 0x01,
		0x04, 0x03, 0x02, 0x01,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x01, 0x00,
	}, e.Bytes())
}

func TestPureArguments(t *testing.T) {
	assert.Equal(t, []byte{3, 0, 0, 0, 0, 0, 0, 0}, PureU64(3))

	empty, err := PureU64Vector(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, empty)

	vec, err := PureU64Vector([]uint64{1, 256})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0}, vec)

	mat, err := PureU64Matrix([][]uint64{{4, 3}, {}})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 2, 4, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0}, mat)

	s, err := PureString("mnist")
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 'm', 'n', 'i', 's', 't'}, s)
}

type pair struct {
	a uint16
	b string
}

func (p pair) MarshalBCS(e *Encoder) error {
	e.U16(p.a)
	return e.String(p.b)
}

func TestMarshalCopiesBuffer(t *testing.T) {
	b, err := Marshal(pair{a: 7, b: "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0, 1, 'x'}, b)
}
