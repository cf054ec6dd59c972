// Package testutil provides testing utilities for the Shopping Content client.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path prefix the mock serves the API under.
const APIPrefix = "/content/v2.1/"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// BatchResponder builds the response entries for the decoded request entries
// of a custombatch call.
type BatchResponder func(entries []map[string]any) []map[string]any

// MockContent is a configurable mock Content API server for testing.
type MockContent struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	requests     []RecordedRequest
}

// NewMockContent creates a new mock Content API server.
func NewMockContent() *MockContent {
	mock := &MockContent{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{
				"code":    404,
				"message": "no handler for " + r.URL.Path,
				"errors":  []map[string]any{{"reason": "notFound", "message": "not found"}},
			},
		})
	}))

	return mock
}

// URL returns the base URL to configure the client with.
func (m *MockContent) URL() string {
	return m.server.URL + APIPrefix
}

// Path returns the absolute mock path of an API path such as "123/products".
func (m *MockContent) Path(rel string) string {
	return APIPrefix + rel
}

// Close shuts down the mock server.
func (m *MockContent) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockContent) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.requests = nil
}

// SetHandler sets a custom handler for an API path (relative to APIPrefix).
func (m *MockContent) SetHandler(rel string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[m.Path(rel)] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockContent) SetResponse(rel string, resp MockResponse) {
	m.SetHandler(rel, func(w http.ResponseWriter, r *http.Request) {
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

// SetJSON responds to a path with v encoded as JSON.
func (m *MockContent) SetJSON(rel string, status int, v any) {
	m.SetHandler(rel, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, v)
	})
}

// SetPages serves a paginated list resource. Page i is returned for
// pageToken "page-i" (the first page for no token) and carries a
// nextPageToken unless it is the last page.
func (m *MockContent) SetPages(rel, kind string, pages ...[]any) {
	m.SetHandler(rel, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if token := r.URL.Query().Get("pageToken"); token != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(token, "page-"))
			if err != nil || n < 0 || n >= len(pages) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error": map[string]any{"code": 400, "message": "invalid page token " + token},
				})
				return
			}
			idx = n
		}

		body := map[string]any{"kind": kind, "resources": pages[idx]}
		if idx+1 < len(pages) {
			body["nextPageToken"] = fmt.Sprintf("page-%d", idx+1)
		}
		writeJSON(w, http.StatusOK, body)
	})
}

// SetBatch serves a custombatch endpoint: request entries are decoded and
// handed to responder, whose entries are returned under the given kind.
func (m *MockContent) SetBatch(rel, kind string, responder BatchResponder) {
	m.SetHandler(rel, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Entries []map[string]any `json:"entries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"code": 400, "message": err.Error()},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"kind":    kind,
			"entries": responder(req.Entries),
		})
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockContent) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// Requests returns a copy of the recorded requests.
func (m *MockContent) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or the zero value.
func (m *MockContent) LastRequest() RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// BatchID returns the batchId of a decoded batch entry.
func BatchID(entry map[string]any) int64 {
	switch v := entry["batchId"].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// EntryError builds a failed batch response entry.
func EntryError(batchID int64, kind, reason, message string) map[string]any {
	return map[string]any{
		"kind":    kind,
		"batchId": batchID,
		"errors": map[string]any{
			"code":    400,
			"message": message,
			"errors":  []map[string]any{{"reason": reason, "message": message}},
		},
	}
}

// NewErrorResponse creates a Google-style error response.
func NewErrorResponse(status int, reason, message string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors":  []map[string]any{{"domain": "global", "reason": reason, "message": message}},
		},
	})
	return MockResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=UTF-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewErrorResponse(http.StatusInternalServerError, "backendError", "Internal error encountered.")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
