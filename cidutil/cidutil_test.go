package cidutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCIDIsStableAndVerifiable(t *testing.T) {
	data := []byte(`{"scale":2}`)
	a, err := CIDv1RawSHA256CID(data)
	require.NoError(t, err)
	b, err := Parse(CIDv1RawSHA256(data))
	require.NoError(t, err)
	assert.True(t, a.Equals(b))

	assert.NoError(t, Verify(a, data))
	assert.Error(t, Verify(a, []byte("other")))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-cid")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
}
