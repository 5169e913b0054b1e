package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClientConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
		KeepAlive:           60 * time.Second,
	}
}

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential requests to the same host. This validates that the
// Transport is configured with keep-alives enabled and connection pooling active.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())
	defer client.Close()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5

	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Fetch(ctx, server.URL, nil, 5*time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	// all requests after the first should reuse the single pooled connection
	if reusedCount != numRequests-1 {
		t.Errorf("reused connections = %d, want %d", reusedCount, numRequests-1)
	}

	stats := client.Stats()
	if stats.Opened != 1 {
		t.Errorf("Stats().Opened = %d, want 1", stats.Opened)
	}
	if stats.Reused != numRequests-1 {
		t.Errorf("Stats().Reused = %d, want %d", stats.Reused, numRequests-1)
	}
}

// TestClient_KeepAlivesDisabled verifies that a zero idle pool size forces a
// new connection for every request.
func TestClient_KeepAlivesDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testClientConfig()
	cfg.MaxIdleConnsPerHost = 0
	client := NewClient(cfg)
	defer client.Close()

	for i := 0; i < 3; i++ {
		if resp := client.Fetch(context.Background(), server.URL, nil, time.Second); resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	stats := client.Stats()
	if stats.Opened != 3 || stats.Reused != 0 {
		t.Errorf("Stats() = %+v, want 3 opened and 0 reused", stats)
	}
}

// TestClient_OnConnHook verifies that the OnConn hook sees every request.
func TestClient_OnConnHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())
	defer client.Close()

	var opened, reused atomic.Int32
	client.OnConn(func(r bool) {
		if r {
			reused.Add(1)
		} else {
			opened.Add(1)
		}
	})

	for i := 0; i < 3; i++ {
		_ = client.Fetch(context.Background(), server.URL, nil, time.Second)
	}

	if opened.Load() != 1 || reused.Load() != 2 {
		t.Errorf("hook saw opened=%d reused=%d, want 1 and 2", opened.Load(), reused.Load())
	}
}

func TestClient_Fetch_SendsGETWithHeaders(t *testing.T) {
	var (
		gotMethod string
		gotHeader string
		gotAccept string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())
	defer client.Close()

	resp := client.Fetch(context.Background(), server.URL, map[string]string{"Authorization": "Bearer t"}, time.Second)
	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
	if gotHeader != "Bearer t" {
		t.Errorf("Authorization = %q, want %q", gotHeader, "Bearer t")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
	if string(resp.Body) != "short and stout" {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(testClientConfig())
	defer client.Close()

	resp := client.Fetch(context.Background(), server.URL, nil, 20*time.Millisecond)
	if resp.Error == nil {
		t.Fatal("Fetch() error = nil, want timeout")
	}
	if !errors.Is(resp.Error, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want context.DeadlineExceeded in chain", resp.Error)
	}
	if resp.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", resp.StatusCode)
	}
}

// TestClient_Fetch_ZeroTimeout verifies that a zero timeout does not expire the
// request immediately.
func TestClient_Fetch_ZeroTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())
	defer client.Close()

	if resp := client.Fetch(context.Background(), server.URL, nil, 0); resp.Error != nil {
		t.Errorf("Fetch() error = %v, want nil", resp.Error)
	}
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(testClientConfig())
	defer client.Close()

	resp := client.Fetch(context.Background(), url, nil, time.Second)
	if resp.Error == nil {
		t.Fatal("Fetch() error = nil, want connection error")
	}
	if !strings.Contains(resp.Error.Error(), "request failed") {
		t.Errorf("Fetch() error = %v, want 'request failed'", resp.Error)
	}
}

func TestClient_Fetch_InvalidURL(t *testing.T) {
	client := NewClient(testClientConfig())
	defer client.Close()

	resp := client.Fetch(context.Background(), "http://bad host/", nil, time.Second)
	if resp.Error == nil {
		t.Fatal("Fetch() error = nil, want request creation error")
	}
	if !strings.Contains(resp.Error.Error(), "failed to create request") {
		t.Errorf("Fetch() error = %v, want 'failed to create request'", resp.Error)
	}
}

func TestClient_Fetch_BodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"at limit", MaxResponseBodySize, false},
		{"one byte over", MaxResponseBodySize + 1, true},
		{"well over", MaxResponseBodySize + 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("7", tt.size)))
			}))
			defer server.Close()

			client := NewClient(testClientConfig())
			defer client.Close()

			resp := client.Fetch(context.Background(), server.URL, nil, 5*time.Second)
			if tt.wantErr {
				if !errors.Is(resp.Error, ErrBodyTooLarge) {
					t.Fatalf("Fetch() error = %v, want ErrBodyTooLarge", resp.Error)
				}
				if resp.Body != nil {
					t.Errorf("len(Body) = %d, want no body", len(resp.Body))
				}
				if resp.StatusCode != http.StatusOK {
					t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
				}
				return
			}
			if resp.Error != nil {
				t.Fatalf("Fetch() error = %v", resp.Error)
			}
			if len(resp.Body) != tt.size {
				t.Errorf("len(Body) = %d, want %d", len(resp.Body), tt.size)
			}
		})
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient(testClientConfig())

	client.Close()
	client.Close()
	client.Close()
}

// TestClient_Close_NilClient verifies that Close() handles nil receiver safely.
func TestClient_Close_NilClient(t *testing.T) {
	var client *Client

	// should not panic on nil receiver
	client.Close()
}

// TestClient_Close_ActuallyClosesConnections verifies that Close drops idle
// connections, but the client remains usable for new requests.
func TestClient_Close_ActuallyClosesConnections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())

	for i := 0; i < 3; i++ {
		if resp := client.Fetch(context.Background(), server.URL, nil, time.Second); resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	client.Close()

	resp := client.Fetch(context.Background(), server.URL, nil, time.Second)
	if resp.Error != nil {
		t.Errorf("request after Close failed: %v", resp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if got := client.Stats().Opened; got != 2 {
		t.Errorf("Stats().Opened = %d, want 2 (one before and one after Close)", got)
	}
}
