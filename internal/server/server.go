package server

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"http2Server/internal/handler"
	"http2Server/internal/hpack"
	"http2Server/internal/logging"
)

// Server serves the configured routes over HTTP/2, compressing every
// response header block through a per-connection hpack encoder.
type Server struct {
	Port           uint16
	Routes         []Route
	tableSize      uint32
	sensitiveNames map[string]bool
	Logger         logging.Logger
}

func NewServer(configPath string) *Server {
	conf, err := LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	if err := conf.Validate(); err != nil {
		panic(err)
	}

	sensitiveNames := make(map[string]bool, len(conf.Encoder.SensitiveHeaders))
	for _, name := range conf.Encoder.SensitiveHeaders {
		sensitiveNames[strings.ToLower(name)] = true
	}

	logger, err := logging.NewDefaultLogger(logging.LogLevel(strings.ToUpper(conf.Logger.Level)), conf.Logger.File)
	if err != nil {
		panic(err)
	}

	return &Server{
		Port:           uint16(conf.Server.Port),
		Routes:         conf.Server.Routes,
		tableSize:      conf.Encoder.HeaderTableSize,
		sensitiveNames: sensitiveNames,
		Logger:         logger,
	}
}

func (srv *Server) Log(level logging.LogLevel, message string, args ...interface{}) {
	srv.Logger.Log(level, message, args...)
}

// HeaderTableSize is the dynamic table size we advertise for the request
// direction decoder.
func (srv *Server) HeaderTableSize() uint32 {
	if srv.tableSize == 0 {
		return hpack.DefaultMaxDynamicTableSize
	}
	return srv.tableSize
}

// IsSensitiveHeader feeds the encoder's never-index decision.
func (srv *Server) IsSensitiveHeader(name string) bool {
	return srv.sensitiveNames[name]
}

func (srv *Server) routeHandler(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for key, value := range route.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(route.Status)
		if route.Body != "" {
			if _, err := w.Write([]byte(route.Body)); err != nil {
				srv.Log(logging.LogLevelError, "Response writer failed for %s: %v", route.Path, err)
			}
		}
	}
}

func (srv *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	srv.Log(logging.LogLevelWarn, "Not Found: %s %s", r.Method, r.URL.Path)
	w.WriteHeader(http.StatusNotFound)
	if _, err := w.Write([]byte("Not Found")); err != nil {
		srv.Log(logging.LogLevelError, "Response writer failed in notFoundHandler: %v", err)
	}
}

func (srv *Server) Start(cert []tls.Certificate) error {
	srv.Log(logging.LogLevelInfo, "Starting server on port %d", srv.Port)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port))
	if err != nil {
		srv.Log(logging.LogLevelError, "Failed to listen on port %d: %v", srv.Port, err)
		return err
	}

	tlsConfig := &tls.Config{
		NextProtos:   []string{"h2"},
		Certificates: cert,
	}
	tlsListener := tls.NewListener(ln, tlsConfig)

	defer func() {
		if cerr := ln.Close(); cerr != nil {
			srv.Log(logging.LogLevelError, "Failed to close listener: %v", cerr)
		}
	}()

	r := chi.NewRouter()
	r.NotFound(srv.notFoundHandler)

	for _, route := range srv.Routes {
		r.HandleFunc(route.Path, srv.routeHandler(route))
		srv.Log(logging.LogLevelDebug, "Added route: %s", route.Path)
	}

	srv.Log(logging.LogLevelInfo, "Listening on https://%s", ln.Addr().String())

	for {
		conn, err := tlsListener.Accept()
		if err != nil {
			srv.Log(logging.LogLevelError, "Failed to accept connection: %v", err)
			continue
		}

		go handler.HandleAccept(conn, srv, r)
	}
}
