// Package remotecache shares finalized effect aggregates between
// compilations over HTTP/3, so parallel builds of the same codebase can
// reuse each other's analysis results instead of re-deriving them.
package remotecache

import (
	"crypto/tls"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	http3 "github.com/quic-go/quic-go/http3"

	"github.com/vela-lang/vela/internal/metacache"
)

// maxPublishBody bounds a publish request body.
const maxPublishBody = 1 << 16

// Server serves a metacache over HTTP/3.
type Server struct {
	srv   *http3.Server
	pc    net.PacketConn
	addr  string
	close func() error
}

// NewServer creates a server for addr backed by the given cache.
func NewServer(addr string, tlsCfg *tls.Config, cache *metacache.Cache) *Server {
	s := &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: Handler(cache)}

	return &Server{srv: s, addr: addr}
}

// Start begins serving on a UDP socket, ephemeral if addr ends with ":0",
// and returns the bound address.
func (s *Server) Start() (string, error) {
	var err error

	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}

	realAddr := s.pc.LocalAddr().String()
	done := make(chan struct{})

	go func() {
		_ = s.srv.Serve(s.pc)
		close(done)
	}()

	s.close = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return nil
	}

	return realAddr, nil
}

// Stop stops the server.
func (s *Server) Stop() error {
	if s.close != nil {
		return s.close()
	}

	return nil
}

// Handler builds the cache API as a plain http.Handler, independent of the
// QUIC listener so it can also be exercised over a test transport.
func Handler(cache *metacache.Cache) http.Handler {
	mux := http.NewServeMux()
	al := accessLogEnabled()

	mux.HandleFunc("/healthz", wrap(al, "healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}))

	mux.HandleFunc("/v1/effects", wrap(al, "effects", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleLookup(cache, w, r)
		case http.MethodPost:
			handlePublish(cache, w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	return mux
}

func handleLookup(cache *metacache.Cache, w http.ResponseWriter, r *http.Request) {
	method := strings.TrimSpace(r.URL.Query().Get("method"))
	if method == "" {
		http.Error(w, "missing method parameter", http.StatusBadRequest)
		return
	}

	entry, ok := cache.Entry(metacache.MethodID(method))
	if !ok {
		http.Error(w, "unknown method", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func handlePublish(cache *metacache.Cache, w http.ResponseWriter, r *http.Request) {
	var entry metacache.Entry

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBody))
	if err := dec.Decode(&entry); err != nil {
		http.Error(w, "malformed entry: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := cache.Put(entry); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("remotecache: write response: %v", err)
	}
}

// statusWriter captures the response code for access logging.
type statusWriter struct {
	rw   http.ResponseWriter
	code int
}

func (s *statusWriter) Header() http.Header { return s.rw.Header() }

func (s *statusWriter) WriteHeader(code int) { s.code = code; s.rw.WriteHeader(code) }

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}

	return s.rw.Write(b)
}

func wrap(accessLog bool, name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{rw: w}
		start := time.Now()
		h(sw, r)

		if accessLog {
			log.Printf("remotecache: %s %s %s -> %d (%s)", r.Method, r.URL.Path, name, sw.code, time.Since(start))
		}
	}
}

func accessLogEnabled() bool {
	v := strings.TrimSpace(os.Getenv("VELA_CACHE_ACCESS_LOG"))

	return v == "1" || strings.EqualFold(v, "true")
}
