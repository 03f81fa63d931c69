package hpack

import (
	"errors"
	"fmt"
	"strconv"
)

const DefaultMaxDynamicTableSize = 4096

// ErrEncodingFailure means a header block could not make progress into the
// caller's buffer: either the status prefix did not fit, or a strict call
// encoded nothing at all. The HTTP/2 layer treats it as fatal for the
// stream.
var ErrEncodingFailure = errors.New("hpack: header block encoding failure")

// HeaderListTooLargeError is the connection-level rejection raised by the
// list size validator before any table mutation has happened.
type HeaderListTooLargeError struct {
	Limit uint32
}

func (e *HeaderListTooLargeError) Error() string {
	return fmt.Sprintf("hpack: header list exceeds SETTINGS_MAX_HEADER_LIST_SIZE of %d", e.Limit)
}

// Encoder compresses response header blocks for one HTTP/2 connection. It
// owns the dynamic table the peer decoder mirrors, so every encode call
// must happen on the same goroutine that writes the connection, in frame
// order.
type Encoder struct {
	table             dynamicTable
	sensitive         SensitivityFunc
	maxHeaderListSize uint32 // 0 = unbounded, validation skipped
}

func NewEncoder(maxTableSize uint32, sensitive SensitivityFunc) *Encoder {
	enc := &Encoder{sensitive: sensitive}
	enc.table.init(maxTableSize)
	return enc
}

// SetMaxHeaderTableSize applies the peer's SETTINGS_HEADER_TABLE_SIZE,
// evicting oldest entries if the table shrank.
func (enc *Encoder) SetMaxHeaderTableSize(size uint32) {
	enc.table.setMaxSize(size)
}

// SetMaxHeaderListSize applies the peer's SETTINGS_MAX_HEADER_LIST_SIZE.
func (enc *Encoder) SetMaxHeaderListSize(size uint32) {
	enc.maxHeaderListSize = size
}

// BeginEncodeHeaders starts a header block: the status pseudo header when
// statusCode is non-zero, then as many producer headers as fit in buf. A
// false complete return means the caller should flush what was written as a
// HEADERS frame and resume with ContinueEncodeHeaders on the same producer.
func (enc *Encoder) BeginEncodeHeaders(statusCode int, headers HeaderProducer, buf []byte) (int, bool, error) {
	written := 0
	if statusCode != 0 {
		n, ok := enc.encodeStatus(buf, statusCode)
		if !ok {
			return 0, false, fmt.Errorf("%w: status header does not fit in %d bytes", ErrEncodingFailure, len(buf))
		}
		written = n
	}

	if !headers.Advance() {
		return written, true, nil
	}

	n, complete, err := enc.encodeCurrentHeaders(headers, buf[written:], written == 0)
	return written + n, complete, err
}

// ContinueEncodeHeaders picks up an incomplete block at the producer's
// current header, for the following CONTINUATION frame. Encoding nothing at
// all is an error here, otherwise a header larger than any buffer the
// caller can supply would loop forever.
func (enc *Encoder) ContinueEncodeHeaders(headers HeaderProducer, buf []byte) (int, bool, error) {
	return enc.encodeCurrentHeaders(headers, buf, true)
}

// ValidateMaxHeaderListSize sums the uncompressed size of the whole list
// against the peer's limit before anything is encoded, so a rejected block
// leaves the dynamic table untouched. The producer is consumed.
func (enc *Encoder) ValidateMaxHeaderListSize(includeStatus bool, headers HeaderProducer) error {
	if enc.maxHeaderListSize == 0 {
		return nil
	}

	var total uint64
	if includeStatus {
		total += uint64(headerFieldSize(":status", "200"))
	}
	for headers.Advance() {
		name, value := headers.Header()
		total += uint64(headerFieldSize(name, value))
	}

	if total > uint64(enc.maxHeaderListSize) {
		return &HeaderListTooLargeError{Limit: enc.maxHeaderListSize}
	}
	return nil
}

// encodeCurrentHeaders encodes the producer's current header and keeps
// advancing until the producer is exhausted or the buffer is full. On a
// full buffer the producer stays positioned on the unencoded header.
func (enc *Encoder) encodeCurrentHeaders(headers HeaderProducer, buf []byte, strict bool) (int, bool, error) {
	written := 0
	for {
		name, value := headers.Header()
		n, ok := enc.encodeHeader(buf[written:], headers.Known().StaticIndex(), name, value)
		if !ok {
			if written == 0 && strict {
				return 0, false, fmt.Errorf("%w: no header fits in %d bytes", ErrEncodingFailure, len(buf))
			}
			return written, false, nil
		}
		written += n

		if !headers.Advance() {
			return written, true, nil
		}
	}
}

// encodeStatus writes :status. Seven codes have full static table entries;
// every other code indexes the :status name and carries the code literal.
func (enc *Encoder) encodeStatus(buf []byte, statusCode int) (int, bool) {
	if index, ok := statusStaticIndex[statusCode]; ok {
		return encodeIndexedHeaderField(buf, index)
	}
	return enc.encodeHeader(buf, statusNameIndex, ":status", strconv.Itoa(statusCode))
}

// encodeHeader picks one representation for a single header and writes it.
// staticIndex is a static table name index, or 0 when the name has none.
// The dynamic table is only mutated after the bytes are in the buffer, so
// a failed write changes nothing the peer has to mirror.
func (enc *Encoder) encodeHeader(buf []byte, staticIndex int, name string, value string) (int, bool) {
	headerSize := headerFieldSize(name, value)
	hash := hashName(name)

	// Sensitive values must not enter any dynamic table, ours or an
	// intermediary's.
	if enc.sensitive != nil && enc.sensitive(name, value) {
		if staticIndex != 0 {
			return encodeNeverIndexedIndexedName(buf, staticIndex, value)
		}
		if index, ok := enc.table.lookupName(name, hash); ok {
			return encodeNeverIndexedIndexedName(buf, index, value)
		}
		return encodeNeverIndexedNewName(buf, name, value)
	}

	// Peer disabled the dynamic table entirely.
	if enc.table.maxSize == 0 {
		if staticIndex != 0 {
			return encodeWithoutIndexingIndexedName(buf, staticIndex, value)
		}
		return encodeWithoutIndexingNewName(buf, name, value)
	}

	// Inserting a header bigger than the whole table would just flush
	// every live entry for nothing.
	if headerSize > enc.table.maxSize {
		if staticIndex != 0 {
			return encodeWithoutIndexingIndexedName(buf, staticIndex, value)
		}
		if index, ok := enc.table.lookupName(name, hash); ok {
			return encodeWithoutIndexingIndexedName(buf, index, value)
		}
		return encodeWithoutIndexingNewName(buf, name, value)
	}

	if entry := enc.table.lookupNameAndValue(name, value, hash); entry != nil {
		return encodeIndexedHeaderField(buf, enc.table.wireIndex(entry))
	}

	// Static name indices win over dynamic ones: smaller numbers, and no
	// dependence on peer table state.
	var n int
	var ok bool
	if staticIndex != 0 {
		n, ok = encodeIncrementalIndexingIndexedName(buf, staticIndex, value)
	} else if index, found := enc.table.lookupName(name, hash); found {
		n, ok = encodeIncrementalIndexingIndexedName(buf, index, value)
	} else {
		n, ok = encodeIncrementalIndexingNewName(buf, name, value)
	}
	if ok {
		enc.table.ensureCapacity(headerSize)
		enc.table.insert(name, value, hash, headerSize)
	}
	return n, ok
}
