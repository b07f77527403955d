package webdav

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"davstore/internal/davserver"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requestLog records what a stub server received.
type requestLog struct {
	mu       sync.Mutex
	methods  map[string]int
	uris     []string
	closeHdr []bool
	lengths  []int64
}

func (l *requestLog) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		if l.methods == nil {
			l.methods = make(map[string]int)
		}
		l.methods[r.Method]++
		l.uris = append(l.uris, r.RequestURI)
		l.closeHdr = append(l.closeHdr, r.Close)
		l.lengths = append(l.lengths, r.ContentLength)
		l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (l *requestLog) count(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.methods[method]
}

func (l *requestLog) lastURI() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.uris) == 0 {
		return ""
	}
	return l.uris[len(l.uris)-1]
}

// newDAVServer starts a real WebDAV server over a temp directory, mounted
// at /dav.
func newDAVServer(t *testing.T, user, pass string) (*httptest.Server, *requestLog) {
	t.Helper()
	dav, err := davserver.NewDirServer("/dav", t.TempDir(), user, pass, quietLogger())
	if err != nil {
		t.Fatalf("NewDirServer failed: %v", err)
	}
	log := &requestLog{}
	ts := httptest.NewServer(log.wrap(dav))
	t.Cleanup(ts.Close)
	return ts, log
}

// newStatusServer answers every request with status.
func newStatusServer(t *testing.T, status int, header http.Header) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	ts := httptest.NewServer(log.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header()[k] = v
		}
		w.WriteHeader(status)
	})))
	t.Cleanup(ts.Close)
	return ts, log
}

func newTestClient(t *testing.T, location string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c, err := NewClient(Config{Location: location, PublicURL: "https://cdn.example.com/media/"}, opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

// trackingTransport records whether every response body was closed.
type trackingTransport struct {
	base http.RoundTripper

	mu     sync.Mutex
	bodies []*trackedBody
}

type trackedBody struct {
	io.ReadCloser
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return b.ReadCloser.Close()
}

func (tt *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := tt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body := &trackedBody{ReadCloser: resp.Body}
	resp.Body = body
	tt.mu.Lock()
	tt.bodies = append(tt.bodies, body)
	tt.mu.Unlock()
	return resp, nil
}

func (tt *trackingTransport) allClosed() bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	for _, b := range tt.bodies {
		if !b.closed {
			return false
		}
	}
	return len(tt.bodies) > 0
}

// newHeaderServer stores the Authorization header of each request in got.
func newHeaderServer(t *testing.T, got *string) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}
