package http2

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"http2Server/internal/hpack"
	"http2Server/internal/http2/frame"
	"http2Server/internal/http2/structs"
)

//goland:noinspection ALL
const (
	SETTINGS_HEADER_TABLE_SIZE = iota + 1
	SETTINGS_ENABLE_PUSH
	SETTINGS_MAX_CONCURRENT_STREAMS
	SETTINGS_INITIAL_WINDOW_SIZE
	SETTINGS_MAX_FRAME_SIZE
	SETTINGS_MAX_HEADER_LIST_SIZE
)

const DefaultMaxFrameSize = 16_384

var ConnectionPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// SendSettingsFrame announces our side of the connection: table size for
// the request-direction decoder and the largest frame we accept.
func SendSettingsFrame(conn net.Conn, headerTableSize uint32) error {
	data := make([]byte, 12)
	binary.BigEndian.PutUint16(data[:2], uint16(SETTINGS_HEADER_TABLE_SIZE))
	binary.BigEndian.PutUint32(data[2:6], headerTableSize)
	binary.BigEndian.PutUint16(data[6:8], uint16(SETTINGS_MAX_FRAME_SIZE))
	binary.BigEndian.PutUint32(data[8:12], DefaultMaxFrameSize)

	if err := frame.SendFrame(conn, structs.SETTINGS_FRAME_TYPE, 0, 0, data); err != nil {
		return fmt.Errorf("error writing settings frame: %w", err)
	}
	return nil
}

func SendSettingsAck(conn net.Conn) error {
	if err := frame.SendFrame(conn, structs.SETTINGS_FRAME_TYPE, structs.ACK, 0, nil); err != nil {
		return fmt.Errorf("error writing settings ack: %w", err)
	}
	return nil
}

// ApplyPeerSettings feeds the peer's SETTINGS into the response encoder:
// its header table size and header list limit bound what we may compress,
// its max frame size bounds the header block fragments. Returns the peer's
// max frame size (0 when the frame did not carry one).
func ApplyPeerSettings(f *structs.Frame, encoder *hpack.Encoder) (uint32, error) {
	if f.StreamID != 0x0 {
		return 0, fmt.Errorf("invalid settings frame stream id: %v", f.StreamID)
	}
	if len(f.Payload)%6 != 0 {
		return 0, fmt.Errorf("invalid settings frame payload length: %v", len(f.Payload))
	}

	var maxFrameSize uint32
	for pos := 0; pos < len(f.Payload); pos += 6 {
		id := binary.BigEndian.Uint16(f.Payload[pos : pos+2])
		value := binary.BigEndian.Uint32(f.Payload[pos+2 : pos+6])

		switch id {
		case SETTINGS_HEADER_TABLE_SIZE:
			encoder.SetMaxHeaderTableSize(value)
		case SETTINGS_MAX_HEADER_LIST_SIZE:
			encoder.SetMaxHeaderListSize(value)
		case SETTINGS_MAX_FRAME_SIZE:
			if value < 16_384 || value > 16_777_215 {
				return 0, fmt.Errorf("invalid max frame size: %v", value)
			}
			maxFrameSize = value
		}
	}
	return maxFrameSize, nil
}

// VerifyConnectionPreface consumes the client preface and the settings
// frame that must follow it, returning that frame for the caller to apply.
func VerifyConnectionPreface(reader *bufio.Reader) (*structs.Frame, error) {
	var preface bytes.Buffer
	if _, err := io.CopyN(&preface, reader, int64(len(ConnectionPreface))); err != nil {
		return nil, err
	}
	if preface.String() != ConnectionPreface {
		return nil, fmt.Errorf("invalid connection preface: %v", preface.String())
	}

	f, err := frame.ParseFrame(reader)
	if err != nil {
		return nil, fmt.Errorf("cannot parse frames: %v", err)
	}
	if f.Type != structs.SETTINGS_FRAME_TYPE {
		return nil, fmt.Errorf("invalid frame type, needs to be a settings frame: %v", f.Type)
	}
	if f.Flags&structs.ACK != 0 {
		return nil, fmt.Errorf("unexpected settings ack before our settings were sent")
	}

	return f, nil
}
