// Package testutil provides testing utilities for the cardfetch client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"cardfetch/pkg/api"
)

// MockBackend is a configurable in-process cardfetch service for tests.
// Status responses are scripted as a sequence; the last entry repeats.
type MockBackend struct {
	server *httptest.Server
	mu     sync.Mutex

	statusSeq []api.StatusResponse
	statusIdx int
	snapshot  []api.CardRecord
	failWith  int    // when non-zero, every endpoint answers this status code
	failFetch int    // when non-zero, only POST /fetch answers this status code
	rawFetch  string // when non-empty, POST /fetch answers this body verbatim

	// Tracking
	FetchCalls  int
	StatusCalls int
	ClearCalls  int
	ExportCalls int
	LastNames   []string
}

// NewMockBackend creates a mock service with an empty snapshot and a
// permanently idle status.
func NewMockBackend() *MockBackend {
	m := &MockBackend{
		statusSeq: []api.StatusResponse{{}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /fetch", m.handleFetch)
	mux.HandleFunc("GET /status", m.handleStatus)
	mux.HandleFunc("POST /clear", m.handleClear)
	mux.HandleFunc("POST /export", m.handleExport)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// SetStatusSequence scripts the responses for successive GET /status
// calls. The final entry repeats once the sequence is exhausted.
func (m *MockBackend) SetStatusSequence(seq ...api.StatusResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusSeq = seq
	m.statusIdx = 0
}

// SetSnapshot sets the record set returned for an empty fetch.
func (m *MockBackend) SetSnapshot(records ...api.CardRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = records
}

// FailWith makes every endpoint answer with the given HTTP status.
// Pass 0 to restore normal behavior.
func (m *MockBackend) FailWith(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = statusCode
}

// FailFetchWith makes only POST /fetch answer with the given HTTP
// status, leaving /status healthy. Pass 0 to restore normal behavior.
func (m *MockBackend) FailFetchWith(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFetch = statusCode
}

// RespondFetchRaw makes POST /fetch answer the given body verbatim,
// regardless of contract shape. Pass "" to restore normal behavior.
func (m *MockBackend) RespondFetchRaw(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawFetch = body
}

func (m *MockBackend) failing(w http.ResponseWriter) bool {
	if m.failWith != 0 {
		w.WriteHeader(m.failWith)
		return true
	}
	return false
}

// handleFetch queues every submitted name; an empty list returns the
// configured snapshot, mirroring the real service contract.
func (m *MockBackend) handleFetch(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls++
	if m.failing(w) {
		return
	}
	if m.failFetch != 0 {
		w.WriteHeader(m.failFetch)
		return
	}
	if m.rawFetch != "" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(m.rawFetch))
		return
	}

	var req api.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m.LastNames = req.CardNames

	if len(req.CardNames) == 0 {
		writeJSON(w, m.snapshot)
		return
	}

	records := make([]api.CardRecord, 0, len(req.CardNames))
	for _, name := range req.CardNames {
		records = append(records, api.CardRecord{Name: name, Status: api.StatusQueued})
	}
	writeJSON(w, records)
}

func (m *MockBackend) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls++
	if m.failing(w) {
		return
	}

	status := m.statusSeq[m.statusIdx]
	if m.statusIdx < len(m.statusSeq)-1 {
		m.statusIdx++
	}
	writeJSON(w, status)
}

func (m *MockBackend) handleClear(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	if m.failing(w) {
		return
	}
	m.snapshot = nil
	writeJSON(w, api.ClearResponse{Success: true, Message: "All cards cleared"})
}

func (m *MockBackend) handleExport(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExportCalls++
	if m.failing(w) {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Write([]byte("Name,Oracle Text,Mana Cost,Type Line,Set Name,Status\n"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// RequestCounts returns the per-endpoint call counters.
func (m *MockBackend) RequestCounts() (fetch, status, clear, export int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FetchCalls, m.StatusCalls, m.ClearCalls, m.ExportCalls
}
