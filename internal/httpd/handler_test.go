package httpd

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"poolhttpd/internal/config"
	"poolhttpd/internal/docroot"

	"github.com/spf13/afero"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	cfg.LingerTimeout = 100 * time.Millisecond
	return &cfg
}

func memSource(t *testing.T, files map[string]string) docroot.Source {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, contents := range files {
		if err := afero.WriteFile(fs, name, []byte(contents), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
	}
	return docroot.NewFSSource(fs, "mem")
}

// roundTrip serves a single connection with h and returns everything the
// client received after sending raw.
func roundTrip(t *testing.T, h *Handler, raw string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	served := make(chan struct{})
	go func() {
		defer close(served)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.ServeConn(conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// signals end of request, so a line without a newline is still complete
	_ = conn.(*net.TCPConn).CloseWrite()

	body, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	conn.Close()

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("ServeConn did not return")
	}
	return string(body)
}

func TestServeConnGet(t *testing.T) {
	src := memSource(t, map[string]string{
		"hello-world.html": "hello",
		"a.txt":            "alpha",
		"dir/b.txt":        "beta",
	})
	h := NewHandler(testConfig(), src, nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"default file", "GET / HTTP/1.1\r\n\r\n", "HTTP/1.1 200 OK \r\n\r\nhello"},
		{"named file", "GET /a.txt HTTP/1.1\r\n\r\n", "HTTP/1.1 200 OK \r\n\r\nalpha"},
		{"nested file", "GET /dir/b.txt HTTP/1.1\r\nHost: x\r\n\r\n", "HTTP/1.1 200 OK \r\n\r\nbeta"},
		{"no version", "GET /a.txt\n", "HTTP/1.1 200 OK \r\n\r\nalpha"},
		{"no newline", "GET /a.txt HTTP/1.1", "HTTP/1.1 200 OK \r\n\r\nalpha"},
		{"dot segments clamp to root", "GET /../../a.txt HTTP/1.1\r\n", "HTTP/1.1 200 OK \r\n\r\nalpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roundTrip(t, h, tt.raw); got != tt.want {
				t.Errorf("response = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServeConnErrors(t *testing.T) {
	src := memSource(t, map[string]string{"hello-world.html": "hello"})
	cfg := testConfig()
	cfg.MaxRequestLine = 64
	h := NewHandler(cfg, src, nil)

	tests := []struct {
		name       string
		raw        string
		wantStatus string
		wantBody   string
	}{
		{"missing file", "GET /missing.html HTTP/1.1\r\n", "HTTP/1.1 404 NOT FOUND\r\n\r\n", "/missing.html"},
		{"put", "PUT /a.txt HTTP/1.1\r\n", "HTTP/1.1 405 METHOD NOT ALLOWED\r\n\r\n", "PUT"},
		{"post", "POST / HTTP/1.1\r\n", "HTTP/1.1 405 METHOD NOT ALLOWED\r\n\r\n", "POST"},
		{"unknown method", "DELETE / HTTP/1.1\r\n", "HTTP/1.1 501 NOT IMPLEMENTED\r\n\r\n", "DELETE"},
		{"lowercase method", "get / HTTP/1.1\r\n", "HTTP/1.1 501 NOT IMPLEMENTED\r\n\r\n", "get"},
		{"missing path", "GET\r\n", "HTTP/1.1 400 BAD REQUEST\r\n\r\n", "malformed"},
		{"blank line", "\r\n", "HTTP/1.1 400 BAD REQUEST\r\n\r\n", "no request line"},
		{"no bytes", "", "HTTP/1.1 400 BAD REQUEST\r\n\r\n", "no request line"},
		{"too large", "GET /" + strings.Repeat("a", 200) + " HTTP/1.1\r\n", "HTTP/1.1 413 REQUEST TOO LARGE\r\n\r\n", "64 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, h, tt.raw)
			if !strings.HasPrefix(got, tt.wantStatus) {
				t.Fatalf("response = %q, want prefix %q", got, tt.wantStatus)
			}
			if !strings.Contains(got, tt.wantBody) {
				t.Errorf("response = %q, want body containing %q", got, tt.wantBody)
			}
		})
	}
}

func TestServeConnNotFoundPage(t *testing.T) {
	src := memSource(t, map[string]string{
		"hello-world.html": "hello",
		"404.html":         "<h1>gone</h1>",
	})
	cfg := testConfig()
	cfg.NotFoundFile = "404.html"
	h := NewHandler(cfg, src, nil)

	got := roundTrip(t, h, "GET /nope HTTP/1.1\r\n")
	want := "HTTP/1.1 404 NOT FOUND\r\n\r\n<h1>gone</h1>"
	if got != want {
		t.Errorf("response = %q, want %q", got, want)
	}
}

func TestServeConnNotFoundPageMissing(t *testing.T) {
	cfg := testConfig()
	cfg.NotFoundFile = "404.html"
	h := NewHandler(cfg, memSource(t, nil), nil)

	got := roundTrip(t, h, "GET /nope HTTP/1.1\r\n")
	if got != "HTTP/1.1 404 NOT FOUND\r\n\r\n404 NOT FOUND: /nope\n" {
		t.Errorf("response = %q", got)
	}
}

func TestServeConnDirectory(t *testing.T) {
	src := memSource(t, map[string]string{"dir/b.txt": "beta"})
	h := NewHandler(testConfig(), src, nil)

	got := roundTrip(t, h, "GET /dir HTTP/1.1\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 500 INTERNAL SERVER ERROR\r\n\r\n") {
		t.Errorf("response = %q, want 500", got)
	}
}

type failingSource struct{}

func (failingSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	return nil, &docroot.ReadError{Name: name, Err: errors.New("disk on fire")}
}

func (failingSource) Name() string { return "failing" }

func TestServeConnReadFailure(t *testing.T) {
	h := NewHandler(testConfig(), failingSource{}, nil)

	got := roundTrip(t, h, "GET /a.txt HTTP/1.1\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 500 INTERNAL SERVER ERROR\r\n\r\n") {
		t.Errorf("response = %q, want 500", got)
	}
	if strings.Contains(got, "disk on fire") {
		t.Errorf("response leaks internal error: %q", got)
	}
}

func TestServeConnInvalidUTF8(t *testing.T) {
	src := memSource(t, map[string]string{"hello-world.html": "hello"})
	h := NewHandler(testConfig(), src, nil)

	got := roundTrip(t, h, "GET /\xff\xfe HTTP/1.1\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 404 NOT FOUND\r\n\r\n") {
		t.Fatalf("response = %q, want 404", got)
	}
	if !strings.Contains(got, "�") {
		t.Errorf("response = %q, want replacement character in body", got)
	}
}

func TestServeConnObserver(t *testing.T) {
	src := memSource(t, map[string]string{"hello-world.html": "hello"})

	var mu sync.Mutex
	var results []Result
	h := NewHandler(testConfig(), src, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	roundTrip(t, h, "GET / HTTP/1.1\r\n")
	roundTrip(t, h, "PATCH /x HTTP/1.1\r\n")

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 {
		t.Fatalf("observer called %d times, want 2", len(results))
	}

	first := results[0]
	if first.Method != "GET" || first.Path != "/" || first.Status != StatusOK {
		t.Errorf("first result = %+v", first)
	}
	if !strings.HasPrefix(first.ConnID, "conn-") || len(first.ConnID) != len("conn-")+8 {
		t.Errorf("ConnID = %q, want conn-<8 chars>", first.ConnID)
	}
	if first.Latency <= 0 {
		t.Errorf("Latency = %v, want > 0", first.Latency)
	}
	if first.Err != nil {
		t.Errorf("Err = %v, want nil", first.Err)
	}

	second := results[1]
	if second.Method != "PATCH" || second.Status != StatusNotImplemented {
		t.Errorf("second result = %+v", second)
	}
	if first.ConnID == second.ConnID {
		t.Errorf("connection ids should differ, both %q", first.ConnID)
	}
}

func TestServeConnPartialLineAtDeadline(t *testing.T) {
	src := memSource(t, map[string]string{"hello-world.html": "hello"})
	cfg := testConfig()
	cfg.ReadTimeout = 150 * time.Millisecond
	h := NewHandler(cfg, src, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	served := make(chan struct{})
	go func() {
		defer close(served)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		h.ServeConn(conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	// no newline and the write side stays open
	if _, err := io.WriteString(conn, "GET / HTTP/1.1"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != "HTTP/1.1 200 OK \r\n\r\nhello" {
		t.Errorf("response = %q", body)
	}

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("ServeConn did not return")
	}
}

// blockingSource waits until the fetch deadline expires.
type blockingSource struct {
	deadline chan time.Duration
}

func (s blockingSource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if d, ok := ctx.Deadline(); ok {
		s.deadline <- time.Until(d)
	} else {
		s.deadline <- 0
	}
	<-ctx.Done()
	return nil, &docroot.ReadError{Name: name, Err: ctx.Err()}
}

func (blockingSource) Name() string { return "blocking" }

func TestServeConnFetchTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.WriteTimeout = time.Minute
	cfg.FetchTimeout = 100 * time.Millisecond
	src := blockingSource{deadline: make(chan time.Duration, 1)}
	h := NewHandler(cfg, src, nil)

	start := time.Now()
	got := roundTrip(t, h, "GET /slow.txt HTTP/1.1\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 500 INTERNAL SERVER ERROR\r\n\r\n") {
		t.Errorf("response = %q, want 500", got)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("fetch was not bounded by FetchTimeout, took %v", elapsed)
	}

	d := <-src.deadline
	if d <= 0 || d > cfg.FetchTimeout {
		t.Errorf("fetch deadline = %v, want within %v", d, cfg.FetchTimeout)
	}
}

func TestServeConnReadTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ReadTimeout = 50 * time.Millisecond

	var got Result
	h := NewHandler(cfg, memSource(t, nil), func(r Result) { got = r })

	server, client := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeConn(server)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not time out")
	}

	if got.Status != 0 {
		t.Errorf("Status = %d, want 0 (no response)", got.Status)
	}
	var netErr net.Error
	if !errors.As(got.Err, &netErr) || !netErr.Timeout() {
		t.Errorf("Err = %v, want timeout", got.Err)
	}
}

func TestJobRunsOnce(t *testing.T) {
	src := memSource(t, map[string]string{"hello-world.html": "hello"})
	h := NewHandler(testConfig(), src, nil)

	server, client := net.Pipe()
	job := h.Job(server)

	go func() {
		_, _ = io.WriteString(client, "GET / HTTP/1.1\r\n")
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		job()
	}()

	body, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	<-done

	if string(body) != "HTTP/1.1 200 OK \r\n\r\nhello" {
		t.Errorf("response = %q", body)
	}
}
