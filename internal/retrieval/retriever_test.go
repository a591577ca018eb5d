package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPRetrieverRetrieve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "visiting hours" {
			t.Errorf("query = %q, want %q", req.Query, "visiting hours")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"Visiting hours are 9 to 5."}`))
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, time.Second)
	got, err := r.Retrieve(context.Background(), "visiting hours", "Patient: hi")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got != "Visiting hours are 9 to 5." {
		t.Fatalf("Retrieve() = %q, want %q", got, "Visiting hours are 9 to 5.")
	}
}

func TestHTTPRetrieverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, time.Second)
	if _, err := r.Retrieve(context.Background(), "q", ""); err == nil {
		t.Fatalf("Retrieve() expected error for 500 response")
	}
}

func TestNewModes(t *testing.T) {
	if _, err := New(Config{Mode: "http"}); err == nil {
		t.Fatalf("New(http) expected error without URL")
	}
	if _, err := New(Config{Mode: "bogus"}); err == nil {
		t.Fatalf("New(bogus) expected error for unknown mode")
	}

	r, err := New(Config{Mode: "off"})
	if err != nil {
		t.Fatalf("New(off) error = %v", err)
	}
	if r != nil {
		t.Fatalf("New(off) = %T, want nil", r)
	}

	r, err = New(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("New(auto) error = %v", err)
	}
	if _, ok := r.(*MockRetriever); !ok {
		t.Fatalf("New(auto) without URL = %T, want *MockRetriever", r)
	}
}

func TestMockRetriever(t *testing.T) {
	r := NewMockRetriever()
	got, err := r.Retrieve(context.Background(), "copay amounts", "")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got == "" {
		t.Fatalf("Retrieve() = empty, want summary")
	}

	got, err = r.Retrieve(context.Background(), "something unknown", "")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Retrieve() = %q, want empty for unknown query", got)
	}
}
