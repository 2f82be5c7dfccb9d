package testkit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// TLSServer starts an httptest TLS server for h and returns it with a transport that trusts it
// The server is closed on test cleanup
func TLSServer(t *testing.T, h http.Handler) (*httptest.Server, http.RoundTripper) {
	t.Helper()
	srv := httptest.NewTLSServer(h)
	t.Cleanup(srv.Close)
	return srv, srv.Client().Transport
}

// RoundTripFunc adapts a func into an http.RoundTripper
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper
func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Recorder wraps a transport and remembers every request URL in order
type Recorder struct {
	Next http.RoundTripper

	mu   sync.Mutex
	urls []string
}

// RoundTrip implements http.RoundTripper
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.urls = append(r.urls, req.URL.String())
	r.mu.Unlock()
	return r.Next.RoundTrip(req)
}

// URLs returns a copy of the recorded request URLs
func (r *Recorder) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}
