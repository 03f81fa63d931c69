package http2

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"http2Server/internal/hpack"
	"http2Server/internal/http2/frame"
	"http2Server/internal/http2/structs"
)

const CONTENTSIZEMIN = 1_024 * 5

// Response writes one HTTP/2 response onto the connection: a HEADERS frame
// (plus CONTINUATIONs when the block outgrows a frame) compressed through
// the connection's hpack encoder, then DATA frames. All responses of a
// connection must be written in sequence, since the encoder's dynamic table
// has to mutate in the exact order the peer observes.
type Response struct {
	header        http.Header
	connection    net.Conn
	streamID      uint32
	encoder       *hpack.Encoder
	maxFrameSize  uint32
	headerWritten bool
	streamEnded   bool
	writeFailed   bool
}

func NewResponse(conn net.Conn, streamID uint32, encoder *hpack.Encoder, maxFrameSize uint32) *Response {
	return &Response{
		header:       http.Header{},
		connection:   conn,
		streamID:     streamID,
		encoder:      encoder,
		maxFrameSize: maxFrameSize,
	}
}

func (r *Response) Header() http.Header {
	return r.header
}

func (r *Response) Write(data []byte) (int, error) {
	if !r.headerWritten {
		length := min(len(data), 512)

		if r.Header().Get("Content-Type") == "" && length > 0 {
			r.Header().Set("Content-Type", http.DetectContentType(data[:length]))
		}
		if len(data) < CONTENTSIZEMIN {
			r.header.Set("Content-Length", strconv.Itoa(len(data)))
		}

		r.WriteHeader(http.StatusOK)
	}
	if r.writeFailed {
		return 0, fmt.Errorf("response headers could not be encoded")
	}

	// Terminate stream early
	if len(data) == 0 {
		err := frame.SendFrame(r.connection, structs.DATA_FRAME_TYPE, structs.END_STREAM, r.streamID, nil)
		if err != nil {
			return 0, fmt.Errorf("send frame failed: %w", err)
		}
		r.streamEnded = true
		return 0, nil
	}

	chunkSize := int(r.maxFrameSize)
	wrote := 0
	for wrote < len(data) {
		end := wrote + chunkSize
		flags := uint8(0)
		if end >= len(data) {
			end = len(data)
			flags = structs.END_STREAM
		}
		err := frame.SendFrame(r.connection, structs.DATA_FRAME_TYPE, flags, r.streamID, data[wrote:end])
		if err != nil {
			return wrote, fmt.Errorf("send data frame failed: %w", err)
		}
		wrote = end
	}

	r.streamEnded = true
	return wrote, nil
}

// Finish closes the stream for handlers that never wrote a body.
func (r *Response) Finish() {
	if !r.headerWritten {
		r.WriteHeader(http.StatusOK)
	}
	if r.writeFailed || r.streamEnded {
		return
	}
	_ = frame.SendFrame(r.connection, structs.DATA_FRAME_TYPE, structs.END_STREAM, r.streamID, nil)
	r.streamEnded = true
}

// WriteHeader validates the header list, then drives the encoder until the
// whole block is on the wire, spilling into CONTINUATION frames whenever a
// fragment fills the frame-sized buffer.
func (r *Response) WriteHeader(statusCode int) {
	if r.headerWritten {
		return
	}
	r.headerWritten = true

	fields := make([]hpack.HeaderField, 0, len(r.header))
	for key, values := range r.header {
		name := strings.ToLower(key)
		for _, value := range values {
			fields = append(fields, hpack.HeaderField{Name: name, Value: value})
		}
	}
	producer := hpack.NewHeaderListProducer(fields)

	if err := r.encoder.ValidateMaxHeaderListSize(true, producer); err != nil {
		// The peer told us it will refuse a list this large; give up on
		// the whole connection before the encoder state diverges.
		r.writeFailed = true
		r.sendGoaway(structs.INTERNAL_ERROR)
		return
	}
	producer.Reset()

	buf := make([]byte, r.maxFrameSize)
	n, complete, err := r.encoder.BeginEncodeHeaders(statusCode, producer, buf)

	frameType := uint8(structs.HEADER_FRAME_TYPE)
	for err == nil {
		flags := uint8(0)
		if complete {
			flags = structs.END_HEADERS
		}
		if sendErr := frame.SendFrame(r.connection, frameType, flags, r.streamID, buf[:n]); sendErr != nil {
			r.writeFailed = true
			return
		}
		if complete {
			return
		}
		frameType = structs.CONTINUATION_FRAME_TYPE
		n, complete, err = r.encoder.ContinueEncodeHeaders(producer, buf)
	}

	// A block that cannot progress into a frame-sized buffer is fatal for
	// the stream; nothing of it may be left half-sent.
	r.writeFailed = true
	if errors.Is(err, hpack.ErrEncodingFailure) && frameType == structs.HEADER_FRAME_TYPE {
		r.sendRstStream(structs.INTERNAL_ERROR)
		return
	}
	r.sendGoaway(structs.COMPRESSION_ERROR)
}

func (r *Response) sendRstStream(code uint32) {
	payload := make([]byte, 4)
	payload[0] = byte(code >> 24)
	payload[1] = byte(code >> 16)
	payload[2] = byte(code >> 8)
	payload[3] = byte(code)
	_ = frame.SendFrame(r.connection, structs.RST_STREAM_FRAME_TYPE, 0, r.streamID, payload)
}

func (r *Response) sendGoaway(code uint32) {
	payload := make([]byte, 8)
	payload[4] = byte(code >> 24)
	payload[5] = byte(code >> 16)
	payload[6] = byte(code >> 8)
	payload[7] = byte(code)
	_ = frame.SendFrame(r.connection, structs.GOAWAY_FRAME_TYPE, 0, 0, payload)
}
