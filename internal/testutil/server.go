// Package testutil runs local HTTP servers that stand in for the
// publication site during fetch and pipeline tests.
package testutil

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

// Server wraps a throwaway HTTP server on a local IPv4 address.
type Server struct {
	URL string

	ln   net.Listener
	srv  *http.Server
	once sync.Once
}

// NewIPv4Server starts a server on 127.0.0.1 and registers its shutdown
// with the test cleanup. Runtimes that cannot bind local sockets skip the
// test instead of failing it.
func NewIPv4Server(t testing.TB, handler http.Handler) *Server {
	t.Helper()

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind local tcp4 listener: %v", err)
		return nil
	}

	s := &Server{
		URL: "http://" + ln.Addr().String(),
		ln:  ln,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() {
		_ = s.srv.Serve(ln)
	}()

	t.Cleanup(s.Close)
	return s
}

// ServeHTML starts a server answering every request with the given page.
func ServeHTML(t testing.TB, page string) *Server {
	t.Helper()

	return NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, page)
	}))
}

// Close stops the server and releases the port.
func (s *Server) Close() {
	s.once.Do(func() {
		if s.srv != nil {
			_ = s.srv.Close()
		}
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
}
