package brain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPAdapterGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"We are open 9 to 5."}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, time.Second)
	resp, err := a.Generate(context.Background(), Request{CallID: "CA1", Input: "What are your hours?"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "We are open 9 to 5." {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, "We are open 9 to 5.")
	}
}

func TestHTTPAdapterPlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("  plain answer \n"))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, time.Second)
	resp, err := a.Generate(context.Background(), Request{Input: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "plain answer" {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, "plain answer")
	}
}

func TestHTTPAdapterRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"text":"recovered"}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, time.Second)
	resp, err := a.Generate(context.Background(), Request{Input: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "recovered" {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, "recovered")
	}
	if calls.Load() != 2 {
		t.Fatalf("backend calls = %d, want 2", calls.Load())
	}
}

func TestHTTPAdapterDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(srv.URL, time.Second)
	if _, err := a.Generate(context.Background(), Request{Input: "hi"}); err == nil {
		t.Fatalf("Generate() expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Fatalf("backend calls = %d, want 1", calls.Load())
	}
}

func TestNewAdapterModes(t *testing.T) {
	if _, err := NewAdapter(Config{Mode: "http"}); err == nil {
		t.Fatalf("NewAdapter(http) expected error without URL")
	}
	if _, err := NewAdapter(Config{Mode: "warp"}); err == nil {
		t.Fatalf("NewAdapter(warp) expected error for unknown mode")
	}

	a, err := NewAdapter(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewAdapter(auto) error = %v", err)
	}
	if _, ok := a.(*MockAdapter); !ok {
		t.Fatalf("NewAdapter(auto) without URL = %T, want *MockAdapter", a)
	}

	a, err = NewAdapter(Config{Mode: "auto", HTTPURL: "http://brain.test"})
	if err != nil {
		t.Fatalf("NewAdapter(auto+url) error = %v", err)
	}
	if _, ok := a.(*HTTPAdapter); !ok {
		t.Fatalf("NewAdapter(auto+url) = %T, want *HTTPAdapter", a)
	}
}
