package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestUpstream_LookupFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fuzzy"); got != "Lightning Bolt" {
			t.Errorf("fuzzy param = %q, want %q", got, "Lightning Bolt")
		}
		w.Write([]byte(`{
			"name": "Lightning Bolt",
			"oracle_text": "Lightning Bolt deals 3 damage to any target.",
			"mana_cost": "{R}",
			"type_line": "Instant",
			"set_name": "Limited Edition Alpha"
		}`))
	}))
	defer srv.Close()

	u := NewUpstream(srv.URL, testRetryConfig())

	card, err := u.Lookup(context.Background(), "Lightning Bolt")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !card.Found {
		t.Error("Card should be found")
	}
	if card.ManaCost != "{R}" {
		t.Errorf("ManaCost = %q, want {R}", card.ManaCost)
	}
	if card.SetName != "Limited Edition Alpha" {
		t.Errorf("SetName = %q, want Limited Edition Alpha", card.SetName)
	}
}

func TestUpstream_LookupNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	u := NewUpstream(srv.URL, testRetryConfig())

	card, err := u.Lookup(context.Background(), "Not A Card")
	if err != nil {
		t.Fatalf("404 should not be an error, got %v", err)
	}
	if card.Found {
		t.Error("Card should be not found")
	}
	if card.Name != "Not A Card" {
		t.Errorf("Name = %q, want the requested name", card.Name)
	}
	if calls.Load() != 1 {
		t.Errorf("404 was retried: %d calls", calls.Load())
	}
}

func TestUpstream_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"name": "Opt", "oracle_text": "Scry 1. Draw a card."}`))
	}))
	defer srv.Close()

	u := NewUpstream(srv.URL, testRetryConfig())

	card, err := u.Lookup(context.Background(), "Opt")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !card.Found {
		t.Error("Card should be found after retries")
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestUpstream_ExhaustedRetriesReturnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u := NewUpstream(srv.URL, testRetryConfig())

	card, err := u.Lookup(context.Background(), "Opt")
	if err == nil {
		t.Fatal("Expected error after exhausted retries")
	}
	if card.Found {
		t.Error("Exhausted lookup should yield a not-found card for caching")
	}
	if card.Name != "Opt" {
		t.Errorf("Name = %q, want Opt", card.Name)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestUpstream_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	u := NewUpstream(srv.URL, testRetryConfig())

	_, err := u.Lookup(context.Background(), "Opt")
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx was retried: %d calls", calls.Load())
	}
}

func TestUpstream_ContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := NewUpstream(srv.URL, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := u.Lookup(ctx, "Opt")
	if err == nil {
		t.Fatal("Expected error from cancelled lookup")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Lookup ignored cancellation, took %s", elapsed)
	}
}
