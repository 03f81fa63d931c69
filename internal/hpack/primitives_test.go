package hpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInteger(t *testing.T) {
	buf := make([]byte, 8)

	// The worked examples from RFC 7541 Appendix C.1.
	n, ok := encodeInteger(buf, 0, 5, 10)
	require.True(t, ok)
	assert.Equal(t, []byte{0x0a}, buf[:n])

	n, ok = encodeInteger(buf, 0, 5, 1337)
	require.True(t, ok)
	assert.Equal(t, []byte{0x1f, 0x9a, 0x0a}, buf[:n])

	n, ok = encodeInteger(buf, 0, 8, 42)
	require.True(t, ok)
	assert.Equal(t, []byte{0x2a}, buf[:n])

	// Pattern bits survive in the first octet.
	n, ok = encodeInteger(buf, INDEXED_FIELD, 7, 8)
	require.True(t, ok)
	assert.Equal(t, []byte{0x88}, buf[:n])
}

func TestEncodeIntegerBufferTooSmall(t *testing.T) {
	_, ok := encodeInteger(nil, 0, 5, 10)
	assert.False(t, ok)

	_, ok = encodeInteger(make([]byte, 1), 0, 5, 1337)
	assert.False(t, ok)

	_, ok = encodeInteger(make([]byte, 2), 0, 5, 1337)
	assert.False(t, ok)

	n, ok := encodeInteger(make([]byte, 3), 0, 5, 1337)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestEncodeStringLiteral(t *testing.T) {
	buf := make([]byte, 32)

	n, ok := encodeStringLiteral(buf, "custom-key")
	require.True(t, ok)
	assert.Equal(t, byte(10), buf[0]) // huffman bit clear, length 10
	assert.Equal(t, "custom-key", string(buf[1:n]))

	_, ok = encodeStringLiteral(make([]byte, 10), "custom-key")
	assert.False(t, ok)

	n, ok = encodeStringLiteral(buf, "")
	require.True(t, ok)
	assert.Equal(t, []byte{0x00}, buf[:n])
}

func TestEncodeLiteralForms(t *testing.T) {
	buf := make([]byte, 64)

	// RFC 7541 C.2.1: literal with incremental indexing, new name.
	n, ok := encodeIncrementalIndexingNewName(buf, "custom-key", "custom-header")
	require.True(t, ok)
	assert.Equal(t, byte(0x40), buf[0])
	assert.Equal(t, 26, n)

	// C.2.2: literal without indexing, name from static index 4.
	n, ok = encodeWithoutIndexingIndexedName(buf, 4, "/sample/path")
	require.True(t, ok)
	assert.Equal(t, []byte{0x04, 0x0c}, buf[:2])
	assert.Equal(t, "/sample/path", string(buf[2:n]))

	// C.2.3: never indexed, new name.
	n, ok = encodeNeverIndexedNewName(buf, "password", "secret")
	require.True(t, ok)
	assert.Equal(t, byte(0x10), buf[0])
	assert.Equal(t, 17, n)

	// C.2.4: indexed field, static index 2.
	n, ok = encodeIndexedHeaderField(buf, 2)
	require.True(t, ok)
	assert.Equal(t, []byte{0x82}, buf[:n])
}

func TestEncodeLiteralNoPartialWrites(t *testing.T) {
	// Failures leave the caller free to retry into a fresh buffer; the
	// returned count is only meaningful on success.
	for size := 0; size < 26; size++ {
		_, ok := encodeIncrementalIndexingNewName(make([]byte, size), "custom-key", "custom-header")
		assert.False(t, ok, "unexpected fit in %d bytes", size)
	}
	n, ok := encodeIncrementalIndexingNewName(make([]byte, 26), "custom-key", "custom-header")
	assert.True(t, ok)
	assert.Equal(t, 26, n)
}
