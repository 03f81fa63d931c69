package handler

import (
	"bufio"
	"crypto/tls"
	"errors"
	"io"
	"net"

	"github.com/go-chi/chi/v5"
	xhpack "golang.org/x/net/http2/hpack"

	"http2Server/internal/hpack"
	"http2Server/internal/http2/frame"
	"http2Server/internal/http2/structs"
	"http2Server/internal/logging"
	requesthttp2 "http2Server/internal/request/http2"
	responsehttp2 "http2Server/internal/response/http2"
	serverstructs "http2Server/internal/server/structs"
)

// HandleAccept owns one client connection. Only h2 over ALPN is served.
func HandleAccept(conn net.Conn, srv serverstructs.ServerHandler, r chi.Router) {
	defer func(conn net.Conn) {
		err := conn.Close()
		if err != nil {
			srv.Log(logging.LogLevelError, "Error closing connection from %v: %v", conn.RemoteAddr(), err)
		}
	}(conn)

	srv.Log(logging.LogLevelInfo, "New connection from %v", conn.RemoteAddr())

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		srv.Log(logging.LogLevelWarn, "Rejecting non-TLS connection from %v", conn.RemoteAddr())
		return
	}

	if err := tlsConn.Handshake(); err != nil {
		srv.Log(logging.LogLevelError, "TLS handshake failed with %v: %v", conn.RemoteAddr(), err)
		return
	}

	if tlsConn.ConnectionState().NegotiatedProtocol != "h2" {
		srv.Log(logging.LogLevelWarn, "Rejecting %v: negotiated %q, only h2 is served",
			conn.RemoteAddr(), tlsConn.ConnectionState().NegotiatedProtocol)
		return
	}

	handleHTTP2(tlsConn, srv, r)
	srv.Log(logging.LogLevelInfo, "Handled connection from %v", conn.RemoteAddr())
}

// handleHTTP2 runs the whole connection on this goroutine. That keeps the
// response encoder single threaded: its dynamic table must mutate in the
// exact order header blocks reach the wire.
func handleHTTP2(tlsConn *tls.Conn, srv serverstructs.ServerHandler, r chi.Router) {
	reader := bufio.NewReader(tlsConn)

	settingsFrame, err := responsehttp2.VerifyConnectionPreface(reader)
	if err != nil {
		srv.Log(logging.LogLevelError, "Failed to verify connection preface for %v: %v", tlsConn.RemoteAddr(), err)
		return
	}

	sensitive := func(name, _ string) bool { return srv.IsSensitiveHeader(name) }
	encoder := hpack.NewEncoder(hpack.DefaultMaxDynamicTableSize, sensitive)

	maxFrameSize := uint32(responsehttp2.DefaultMaxFrameSize)
	if size, err := responsehttp2.ApplyPeerSettings(settingsFrame, encoder); err != nil {
		srv.Log(logging.LogLevelError, "Invalid settings from %v: %v", tlsConn.RemoteAddr(), err)
		return
	} else if size != 0 {
		maxFrameSize = size
	}

	if err := responsehttp2.SendSettingsFrame(tlsConn, srv.HeaderTableSize()); err != nil {
		srv.Log(logging.LogLevelError, "Failed to send settings frame for %v: %v", tlsConn.RemoteAddr(), err)
		return
	}
	if err := responsehttp2.SendSettingsAck(tlsConn); err != nil {
		srv.Log(logging.LogLevelError, "Failed to ack settings for %v: %v", tlsConn.RemoteAddr(), err)
		return
	}

	srv.Log(logging.LogLevelDebug, "Established HTTP/2 connection with %v", tlsConn.RemoteAddr())

	var emitted []xhpack.HeaderField
	decoder := xhpack.NewDecoder(srv.HeaderTableSize(), func(f xhpack.HeaderField) {
		emitted = append(emitted, f)
	})

	blocks := make(map[uint32]*requesthttp2.HeaderBlock)

	for {
		f, err := frame.ParseFrame(reader)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			srv.Log(logging.LogLevelError, "Cannot parse frame data: %v", err)
			return
		}

		switch f.Type {
		case structs.SETTINGS_FRAME_TYPE:
			if f.Flags&structs.ACK != 0 {
				continue
			}
			if size, err := responsehttp2.ApplyPeerSettings(f, encoder); err != nil {
				srv.Log(logging.LogLevelError, "Invalid settings from %v: %v", tlsConn.RemoteAddr(), err)
				return
			} else if size != 0 {
				maxFrameSize = size
			}
			if err := responsehttp2.SendSettingsAck(tlsConn); err != nil {
				srv.Log(logging.LogLevelError, "Failed to ack settings for %v: %v", tlsConn.RemoteAddr(), err)
				return
			}

		case structs.HEADER_FRAME_TYPE:
			block, err := requesthttp2.NewHeaderBlock(f)
			if err != nil {
				srv.Log(logging.LogLevelError, "Bad headers frame on stream %d: %v", f.StreamID, err)
				return
			}
			if f.Flags&structs.END_HEADERS != 0 {
				dispatch(tlsConn, srv, r, block, decoder, &emitted, encoder, maxFrameSize)
			} else {
				blocks[f.StreamID] = block
			}

		case structs.CONTINUATION_FRAME_TYPE:
			block, exists := blocks[f.StreamID]
			if !exists {
				srv.Log(logging.LogLevelError, "Continuation without headers on stream %d", f.StreamID)
				return
			}
			if err := block.Append(f); err != nil {
				srv.Log(logging.LogLevelError, "Bad continuation frame on stream %d: %v", f.StreamID, err)
				return
			}
			if f.Flags&structs.END_HEADERS != 0 {
				delete(blocks, f.StreamID)
				dispatch(tlsConn, srv, r, block, decoder, &emitted, encoder, maxFrameSize)
			}

		case structs.PING_FRAME_TYPE:
			if f.Flags&structs.ACK == 0 {
				if err := frame.SendFrame(tlsConn, structs.PING_FRAME_TYPE, structs.ACK, 0, f.Payload); err != nil {
					srv.Log(logging.LogLevelError, "Failed to answer ping from %v: %v", tlsConn.RemoteAddr(), err)
					return
				}
			}

		case structs.GOAWAY_FRAME_TYPE:
			srv.Log(logging.LogLevelInfo, "Peer %v sent goaway", tlsConn.RemoteAddr())
			return

		default:
			// DATA, PRIORITY, RST_STREAM, WINDOW_UPDATE carry nothing the
			// response path needs.
			srv.Log(logging.LogLevelDebug, "Skipping frame type %d on stream %d", f.Type, f.StreamID)
		}
	}
}

func dispatch(conn net.Conn, srv serverstructs.ServerHandler, r chi.Router,
	block *requesthttp2.HeaderBlock, decoder *xhpack.Decoder, emitted *[]xhpack.HeaderField,
	encoder *hpack.Encoder, maxFrameSize uint32) {

	req, err := block.Decode(decoder, emitted)
	if err != nil {
		srv.Log(logging.LogLevelError, "Cannot decode request on stream %d: %v", block.StreamID, err)
		return
	}
	req.RemoteAddr = conn.RemoteAddr().String()

	srv.Log(logging.LogLevelDebug, "Serving %s %s on stream %d", req.Method, req.URL.Path, block.StreamID)

	responseWriter := responsehttp2.NewResponse(conn, block.StreamID, encoder, maxFrameSize)
	r.ServeHTTP(responseWriter, req)
	responseWriter.Finish()
}
