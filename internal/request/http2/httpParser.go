package http2

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	xhpack "golang.org/x/net/http2/hpack"

	"http2Server/internal/http2/structs"
)

// HeaderBlock accumulates the fragments of one request header block until
// END_HEADERS arrives. The hpack decoder is shared per connection; blocks
// must be decoded in arrival order.
type HeaderBlock struct {
	StreamID  uint32
	EndStream bool
	fragments []byte
}

// ExtractHeaderFragment strips padding and priority from a HEADERS frame
// payload. CONTINUATION frames carry neither.
func ExtractHeaderFragment(f *structs.Frame) ([]byte, error) {
	payload := f.Payload

	if f.Type == structs.CONTINUATION_FRAME_TYPE {
		return payload, nil
	}

	var paddingLength int
	if f.Flags&structs.PADDED != 0 {
		if len(payload) < 1 {
			return nil, fmt.Errorf("headers frame too short for padding length")
		}
		paddingLength = int(payload[0])
		payload = payload[1:]
	}
	if f.Flags&structs.HEADERS_PRIORITY != 0 {
		if len(payload) < 5 {
			return nil, fmt.Errorf("headers frame too short for priority fields")
		}
		payload = payload[5:]
	}
	if paddingLength > len(payload) {
		return nil, fmt.Errorf("invalid header padding length: %v", paddingLength)
	}

	return payload[:len(payload)-paddingLength], nil
}

func NewHeaderBlock(f *structs.Frame) (*HeaderBlock, error) {
	fragment, err := ExtractHeaderFragment(f)
	if err != nil {
		return nil, err
	}
	return &HeaderBlock{
		StreamID:  f.StreamID,
		EndStream: f.Flags&structs.END_STREAM != 0,
		fragments: append([]byte(nil), fragment...),
	}, nil
}

func (b *HeaderBlock) Append(f *structs.Frame) error {
	fragment, err := ExtractHeaderFragment(f)
	if err != nil {
		return err
	}
	b.fragments = append(b.fragments, fragment...)
	return nil
}

// Decode runs the reassembled block through the connection's decoder and
// builds the request the router can dispatch.
func (b *HeaderBlock) Decode(dec *xhpack.Decoder, emitted *[]xhpack.HeaderField) (*http.Request, error) {
	*emitted = (*emitted)[:0]
	if _, err := dec.Write(b.fragments); err != nil {
		return nil, fmt.Errorf("cannot decode header block: %v", err)
	}
	if err := dec.Close(); err != nil {
		return nil, fmt.Errorf("truncated header block: %v", err)
	}

	req := &http.Request{
		Header:     make(http.Header),
		Proto:      "HTTP/2.0",
		ProtoMajor: 2,
	}
	for _, field := range *emitted {
		if err := parseHeader(field.Name, field.Value, req); err != nil {
			return nil, err
		}
	}

	if req.Method == "" || req.URL == nil {
		return nil, fmt.Errorf("request misses mandatory pseudo headers")
	}
	return req, nil
}

func parseHeader(key string, value string, r *http.Request) error {
	if key == ":method" {
		r.Method = value
	} else if key == ":path" {
		r.RequestURI = value
		u, err := url.ParseRequestURI(r.RequestURI)
		if err != nil {
			return fmt.Errorf("invalid request URI: %v", r.RequestURI)
		}
		r.URL = u
	} else if key == ":authority" {
		r.Host = value
	}

	if strings.HasPrefix(key, ":") {
		return nil
	}

	if key == "cookie" {
		// Cookie headers may arrive split for better compression.
		r.Header.Add("Cookie", value)
		return nil
	}
	r.Header.Add(key, value)

	return nil
}
