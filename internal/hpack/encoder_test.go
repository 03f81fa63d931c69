package hpack

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	peer "golang.org/x/net/http2/hpack"
)

// decodePeer runs the encoder output through the x/net decoder, which keeps
// its own dynamic table and therefore checks that ours stays in lockstep.
type decodePeer struct {
	dec    *peer.Decoder
	fields []peer.HeaderField
}

func newDecodePeer(maxTableSize uint32) *decodePeer {
	p := &decodePeer{}
	p.dec = peer.NewDecoder(maxTableSize, func(f peer.HeaderField) {
		p.fields = append(p.fields, f)
	})
	return p
}

func (p *decodePeer) decode(t *testing.T, block []byte) []peer.HeaderField {
	t.Helper()
	p.fields = nil
	_, err := p.dec.Write(block)
	require.NoError(t, err, "peer decoder rejected block 0x%s", hex.EncodeToString(block))
	require.NoError(t, p.dec.Close())
	return p.fields
}

func encodeAll(t *testing.T, enc *Encoder, statusCode int, fields []HeaderField, buf []byte) []byte {
	t.Helper()
	producer := NewHeaderListProducer(fields)
	n, complete, err := enc.BeginEncodeHeaders(statusCode, producer, buf)
	require.NoError(t, err)
	require.True(t, complete)
	// Copied, so blocks stay valid when the buffer is reused.
	return append([]byte(nil), buf[:n]...)
}

func TestEncodeStaticStatus(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	buf := make([]byte, 64)

	n, complete, err := enc.BeginEncodeHeaders(200, NewHeaderListProducer(nil), buf)
	require.NoError(t, err)
	assert.True(t, complete)
	require.Equal(t, 1, n)
	assert.Equal(t, byte(0x88), buf[0])
}

func TestEncodeAllStaticStatusCodes(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	buf := make([]byte, 64)

	for code, index := range statusStaticIndex {
		n, complete, err := enc.BeginEncodeHeaders(code, NewHeaderListProducer(nil), buf)
		require.NoError(t, err)
		assert.True(t, complete)
		require.Equal(t, 1, n)
		assert.Equal(t, 0x80|byte(index), buf[0])
	}
	assert.Equal(t, uint32(0), enc.table.size)
}

func TestEncodeUncommonStatusUsesNameIndex(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	buf := make([]byte, 64)

	block := encodeAll(t, enc, 418, nil, buf)

	fields := newDecodePeer(DefaultMaxDynamicTableSize).decode(t, block)
	require.Len(t, fields, 1)
	assert.Equal(t, ":status", fields[0].Name)
	assert.Equal(t, "418", fields[0].Value)
	// Name referenced from the static table, value literal, entry indexed.
	assert.Equal(t, byte(INCREMENTAL_INDEXING|statusNameIndex), block[0])
}

func TestEncodeInsertsAndReusesDynamicEntry(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	fields := []HeaderField{{"custom-key", "custom-value"}}
	buf := make([]byte, 64)

	first := encodeAll(t, enc, 0, fields, buf)
	require.NotEmpty(t, first)
	assert.Equal(t, byte(INCREMENTAL_INDEXING), first[0]) // new name literal

	second := encodeAll(t, enc, 0, fields, buf)
	require.Equal(t, 1, len(second))
	assert.Equal(t, byte(0x80|(STATIC_TABLE_SIZE+1)), second[0]) // index 62

	p := newDecodePeer(DefaultMaxDynamicTableSize)
	for _, block := range [][]byte{first, second} {
		decoded := p.decode(t, block)
		require.Len(t, decoded, 1)
		assert.Equal(t, "custom-key", decoded[0].Name)
		assert.Equal(t, "custom-value", decoded[0].Value)
	}
}

func TestEncodeEvictsOldestEntry(t *testing.T) {
	enc := NewEncoder(70, nil)
	buf := make([]byte, 64)

	encodeAll(t, enc, 0, []HeaderField{{"aaa", "bbb"}}, buf)
	encodeAll(t, enc, 0, []HeaderField{{"ccc", "ddd"}}, buf)

	assert.Equal(t, uint32(38), enc.table.size)
	assert.Nil(t, enc.table.lookupNameAndValue("aaa", "bbb", hashName("aaa")))
	assert.NotNil(t, enc.table.lookupNameAndValue("ccc", "ddd", hashName("ccc")))
}

func TestEncodeOversizeHeaderBypassesTable(t *testing.T) {
	enc := NewEncoder(40, nil)
	name := strings.Repeat("a", 30)
	value := strings.Repeat("b", 38) // 30 + 38 + 32 = 100
	buf := make([]byte, 256)

	block := encodeAll(t, enc, 0, []HeaderField{{name, value}}, buf)
	assert.Equal(t, byte(WITHOUT_INDEXING), block[0])
	assert.Equal(t, uint32(0), enc.table.size)

	fields := newDecodePeer(40).decode(t, block)
	require.Len(t, fields, 1)
	assert.Equal(t, name, fields[0].Name)
	assert.Equal(t, value, fields[0].Value)
}

func TestEncodeSensitiveHeaderIsNeverIndexed(t *testing.T) {
	sensitive := func(name, _ string) bool { return name == "authorization" }
	enc := NewEncoder(DefaultMaxDynamicTableSize, sensitive)
	fields := []HeaderField{{"authorization", "Bearer X"}}
	buf := make([]byte, 64)

	p := newDecodePeer(DefaultMaxDynamicTableSize)
	for i := 0; i < 2; i++ {
		block := encodeAll(t, enc, 0, fields, buf)
		assert.Equal(t, byte(NEVER_INDEXED), block[0])

		decoded := p.decode(t, block)
		require.Len(t, decoded, 1)
		assert.Equal(t, "Bearer X", decoded[0].Value)
		assert.True(t, decoded[0].Sensitive)
	}
	assert.Equal(t, uint32(0), enc.table.size)
}

func TestEncodeSensitiveHeaderReusesNameIndex(t *testing.T) {
	sensitive := func(_, value string) bool { return value == "secret" }
	enc := NewEncoder(DefaultMaxDynamicTableSize, sensitive)
	p := newDecodePeer(DefaultMaxDynamicTableSize)
	buf := make([]byte, 64)

	// A non-sensitive value first, so the sensitive one can reference the
	// name from the dynamic table without ever storing the value.
	p.decode(t, encodeAll(t, enc, 0, []HeaderField{{"x-api-key", "none"}}, buf))
	require.NotNil(t, enc.table.lookupNameAndValue("x-api-key", "none", hashName("x-api-key")))

	block := encodeAll(t, enc, 0, []HeaderField{{"x-api-key", "secret"}}, buf)
	// Index 62 overflows the 4-bit prefix, so the first octet is the
	// never-indexed pattern with the prefix saturated.
	assert.Equal(t, byte(NEVER_INDEXED|0x0f), block[0])
	assert.Equal(t, headerFieldSize("x-api-key", "none"), enc.table.size)

	decoded := p.decode(t, block)
	require.Len(t, decoded, 1)
	assert.Equal(t, "x-api-key", decoded[0].Name)
	assert.Equal(t, "secret", decoded[0].Value)
	assert.True(t, decoded[0].Sensitive)
}

func TestEncodeZeroTableSizeDisablesIndexing(t *testing.T) {
	enc := NewEncoder(0, nil)
	fields := []HeaderField{{"custom-key", "custom-value"}}
	buf := make([]byte, 64)

	for i := 0; i < 2; i++ {
		block := encodeAll(t, enc, 0, fields, buf)
		assert.Equal(t, byte(WITHOUT_INDEXING), block[0])
	}
	assert.Equal(t, uint32(0), enc.table.size)
}

func TestEncodeKnownHeaderPrefersStaticName(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	buf := make([]byte, 64)

	block := encodeAll(t, enc, 0, []HeaderField{{"content-type", "text/html"}}, buf)
	// 6-bit prefix name index 31 from the static table.
	assert.Equal(t, byte(INCREMENTAL_INDEXING|31), block[0])

	fields := newDecodePeer(DefaultMaxDynamicTableSize).decode(t, block)
	require.Len(t, fields, 1)
	assert.Equal(t, "content-type", fields[0].Name)
	assert.Equal(t, "text/html", fields[0].Value)
}

func TestValidateMaxHeaderListSize(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	enc.SetMaxHeaderListSize(100)

	// Three headers of size 50 each.
	fields := []HeaderField{
		{"x-custom-aa", "aaaaaaa"},
		{"x-custom-bb", "bbbbbbb"},
		{"x-custom-cc", "ccccccc"},
	}

	err := enc.ValidateMaxHeaderListSize(false, NewHeaderListProducer(fields))
	require.Error(t, err)

	var tooLarge *HeaderListTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, uint32(100), tooLarge.Limit)

	// Nothing was encoded, so the table must be untouched.
	assert.Equal(t, uint32(0), enc.table.size)

	// Two of them fit.
	assert.NoError(t, enc.ValidateMaxHeaderListSize(false, NewHeaderListProducer(fields[:2])))

	// The status pseudo header counts when requested.
	enc.SetMaxHeaderListSize(120)
	assert.Error(t, enc.ValidateMaxHeaderListSize(true, NewHeaderListProducer(fields[:2])))

	// Unset limit means validation is skipped.
	enc.SetMaxHeaderListSize(0)
	assert.NoError(t, enc.ValidateMaxHeaderListSize(true, NewHeaderListProducer(fields)))
}

func TestEncodePartialBlockContinues(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	fields := []HeaderField{
		{"content-type", "application/json"},
		{"x-first", strings.Repeat("1", 40)},
		{"x-second", strings.Repeat("2", 40)},
		{"x-third", strings.Repeat("3", 40)},
	}
	producer := NewHeaderListProducer(fields)

	var block []byte
	buf := make([]byte, 64)

	n, complete, err := enc.BeginEncodeHeaders(200, producer, buf)
	require.NoError(t, err)
	require.False(t, complete)
	require.Greater(t, n, 0)
	block = append(block, buf[:n]...)

	for rounds := 0; !complete; rounds++ {
		require.Less(t, rounds, 8, "continuation did not terminate")
		n, complete, err = enc.ContinueEncodeHeaders(producer, buf)
		require.NoError(t, err)
		require.Greater(t, n, 0)
		block = append(block, buf[:n]...)
	}

	decoded := newDecodePeer(DefaultMaxDynamicTableSize).decode(t, block)
	require.Len(t, decoded, len(fields)+1)
	assert.Equal(t, ":status", decoded[0].Name)
	assert.Equal(t, "200", decoded[0].Value)
	for i, field := range fields {
		assert.Equal(t, field.Name, decoded[i+1].Name)
		assert.Equal(t, field.Value, decoded[i+1].Value)
	}
}

func TestEncodeStatusTooBigForBuffer(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)

	_, _, err := enc.BeginEncodeHeaders(200, NewHeaderListProducer(nil), nil)
	assert.ErrorIs(t, err, ErrEncodingFailure)
}

func TestContinueWithoutProgressFails(t *testing.T) {
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	producer := NewHeaderListProducer([]HeaderField{{"x-big", strings.Repeat("v", 100)}})
	require.True(t, producer.Advance())

	_, _, err := enc.ContinueEncodeHeaders(producer, make([]byte, 16))
	assert.ErrorIs(t, err, ErrEncodingFailure)
}

func TestEncodeRoundTripStaysInLockstep(t *testing.T) {
	sensitive := func(name, _ string) bool { return name == "set-cookie" }
	enc := NewEncoder(256, sensitive)
	p := newDecodePeer(256)
	buf := make([]byte, 1024)

	responses := [][]HeaderField{
		{{"content-type", "text/html"}, {"server", "fttp"}, {"x-trace", "t1"}},
		{{"content-type", "text/html"}, {"server", "fttp"}, {"x-trace", "t2"}},
		{{"content-type", "application/json"}, {"server", "fttp"}, {"set-cookie", "sid=1"}},
		{{"content-type", "text/html"}, {"server", "fttp"}, {"x-trace", "t2"}},
		{{"vary", "accept-encoding"}, {"server", "fttp"}, {"x-trace", strings.Repeat("x", 200)}},
		{{"content-type", "text/html"}, {"server", "fttp"}, {"x-trace", "t2"}},
	}

	for i, fields := range responses {
		block := encodeAll(t, enc, 200, fields, buf)
		decoded := p.decode(t, block)

		require.Len(t, decoded, len(fields)+1, "response %d", i)
		assert.Equal(t, ":status", decoded[0].Name)
		for j, field := range fields {
			assert.Equal(t, field.Name, decoded[j+1].Name, "response %d header %d", i, j)
			assert.Equal(t, field.Value, decoded[j+1].Value, "response %d header %d", i, j)
		}
	}

	// set-cookie was sensitive every time, so it never made it into the
	// table.
	assert.Nil(t, enc.table.lookupNameAndValue("set-cookie", "sid=1", hashName("set-cookie")))
}

func TestEncodeShrinkTableKeepsPeerInSync(t *testing.T) {
	// Shrinking only our own table makes eviction more aggressive than the
	// peer's, which is safe: every index we emit still resolves to the
	// same entry on their side, so no size update signal is owed.
	enc := NewEncoder(DefaultMaxDynamicTableSize, nil)
	p := newDecodePeer(DefaultMaxDynamicTableSize)
	buf := make([]byte, 512)

	for i := 0; i < 10; i++ {
		if i == 4 {
			enc.SetMaxHeaderTableSize(128)
		}
		fields := []HeaderField{
			{"server", "fttp"},
			{"x-counter", strings.Repeat("v", i+1)},
		}
		decoded := p.decode(t, encodeAll(t, enc, 200, fields, buf))
		require.Len(t, decoded, 3)
		assert.Equal(t, "server", decoded[1].Name)
		assert.Equal(t, "fttp", decoded[1].Value)
		assert.Equal(t, strings.Repeat("v", i+1), decoded[2].Value)
		assert.LessOrEqual(t, enc.table.size, enc.table.maxSize)
	}
}
