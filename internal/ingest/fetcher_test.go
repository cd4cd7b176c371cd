package ingest

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestFetcher() *CollyFetcher {
	f := NewCollyFetcher(nil)
	f.AllowPrivate = true
	f.IgnoreRobotsTxt = true
	return f
}

func TestCollyFetcherFetch(t *testing.T) {
	var flaky atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/bando.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4\n"))
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>ok</p>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher()

	doc, err := f.Fetch(context.Background(), srv.URL+"/bando.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	body, _ := io.ReadAll(doc.Body)
	if string(body) != "%PDF-1.4\n" || doc.ContentType != "application/pdf" || doc.StatusCode != http.StatusOK {
		t.Fatalf("unexpected document %+v body=%q", doc, body)
	}

	doc, err = f.Fetch(context.Background(), srv.URL+"/flaky")
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if flaky.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", flaky.Load())
	}
	body, _ = io.ReadAll(doc.Body)
	if string(body) != "<p>ok</p>" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestCollyFetcherDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/missing")
	if err == nil {
		t.Fatal("expected an error for 404")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", hits.Load())
	}
}

func TestCollyFetcherBlocksPrivateAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	f := NewCollyFetcher(nil)
	f.IgnoreRobotsTxt = true
	f.MaxRetries = 0

	_, err := f.Fetch(context.Background(), srv.URL+"/bando.pdf")
	if !errors.Is(err, ErrBlockedURL) {
		t.Fatalf("expected ErrBlockedURL, got %v", err)
	}

	_, err = f.Fetch(context.Background(), "file:///etc/passwd")
	if !errors.Is(err, ErrBlockedURL) {
		t.Fatalf("expected ErrBlockedURL for file scheme, got %v", err)
	}
}

func TestCollyFetcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Fetch(ctx, "http://127.0.0.1:1/bando.pdf")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.1", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"::1", true},
		{"fd00::1", true},
		{"0.0.0.0", true},
		{"8.8.8.8", false},
		{"151.101.1.69", false},
		{"2a00:1450:4002:800::200e", false},
	}
	for _, tt := range tests {
		if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}
