package structs

import (
	"http2Server/internal/logging"
)

// ServerHandler is what the connection handler needs from the server: a
// logger and the encoder policy knobs from the config.
type ServerHandler interface {
	Log(level logging.LogLevel, message string, args ...interface{})
	HeaderTableSize() uint32
	IsSensitiveHeader(name string) bool
}
