// Package testutil provides testing utilities for the fetch core.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a scripted endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock paginated API server for testing.
// By default any registered resource serves its dataset in a nested
// envelope sliced by the page and pageSize query parameters.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	datasets map[string]dataset

	// Tracking
	RequestCount int
	Requests     []url.Values
}

type dataset struct {
	namespace string
	items     []json.RawMessage
	flat      bool
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		datasets: make(map[string]dataset),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.Requests = append(mock.Requests, r.URL.Query())
		mock.mu.Unlock()

		// Scripted handlers win over registered datasets.
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.mu.RLock()
		ds, exists := mock.datasets[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			mock.serveDataset(w, r, ds)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetDataset registers a paginated dataset under path. The server slices
// it into nested-envelope pages keyed by namespace, honoring the page and
// pageSize query parameters.
func (m *MockAPI) SetDataset(path, namespace string, items []json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[path] = dataset{namespace: namespace, items: items}
}

// SetFlatDataset registers a dataset served as a bare JSON array in a
// single response, ignoring cursor parameters.
func (m *MockAPI) SetFlatDataset(path string, items []json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[path] = dataset{items: items, flat: true}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequests returns the query parameters of every request, in order.
func (m *MockAPI) GetRequests() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.Requests))
	copy(out, m.Requests)
	return out
}

func (m *MockAPI) serveDataset(w http.ResponseWriter, r *http.Request, ds dataset) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if ds.flat {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ds.items)
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid page"}`))
			return
		}
		page = n
	}

	pageSize := 50
	if v := r.URL.Query().Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid pageSize"}`))
			return
		}
		pageSize = n
	}

	total := (len(ds.items) + pageSize - 1) / pageSize
	if total == 0 {
		total = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(ds.items) {
		start = len(ds.items)
	}
	if end > len(ds.items) {
		end = len(ds.items)
	}

	envelope := map[string]any{
		ds.namespace: map[string]any{
			"pages":       total,
			"currentPage": page,
			"results":     ds.items[start:end],
		},
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope)
}

// Items generates count JSON objects of the form {"id": n, "name": "item-n"}.
func Items(count int) []json.RawMessage {
	items := make([]json.RawMessage, count)
	for i := range items {
		items[i] = json.RawMessage(fmt.Sprintf(`{"id": %d, "name": "item-%d"}`, i+1, i+1))
	}
	return items
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewFlakyHandler creates a handler that fails with status failures times,
// then delegates to ok for every later request.
func NewFlakyHandler(status int, failures int, ok func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	var calls int
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		failing := calls <= failures
		mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			w.Write([]byte(`{"error": "transient"}`))
			return
		}
		ok(w, r)
	}
}
