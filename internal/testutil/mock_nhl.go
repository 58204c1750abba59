// Package testutil provides testing utilities for the NHL tap.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock NHL endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockNHL is a configurable mock of the NHL stats and web APIs.
type MockNHL struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	pathCounts        map[string]int
	queries           map[string][]url.Values
}

// NewMockNHL creates a new mock NHL server.
func NewMockNHL() *MockNHL {
	mock := &MockNHL{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
		queries:    make(map[string][]url.Values),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.pathCounts[r.URL.Path]++
		mock.queries[r.URL.Path] = append(mock.queries[r.URL.Path], r.URL.Query())
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"message":"no route for %s"}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockNHL) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockNHL) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockNHL) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.pathCounts = make(map[string]int)
	m.queries = make(map[string][]url.Values)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockNHL) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockNHL) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence serves responses in order; the last one repeats once the
// sequence is used up.
func (m *MockNHL) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[min(next, len(responses)-1)]
		next++
		mu.Unlock()
		writeResponse(w, resp)
	})
}

// SetSummary serves a stats summary endpoint (path like
// "/stats/rest/en/skater/summary") from a season -> player ids table,
// honoring the start/limit/cayenneExp parameters the way the real API does.
func (m *MockNHL) SetSummary(path string, seasons map[int][]int64) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		seasonID, _ := strconv.Atoi(strings.TrimPrefix(query.Get("cayenneExp"), "seasonId="))
		start, _ := strconv.Atoi(query.Get("start"))
		limit, _ := strconv.Atoi(query.Get("limit"))
		if limit <= 0 {
			limit = 50
		}

		ids := seasons[seasonID]
		end := min(start+limit, len(ids))
		rows := make([]string, 0, limit)
		for i := start; i < end; i++ {
			rows = append(rows, fmt.Sprintf(`{"playerId":%d,"seasonId":%d}`, ids[i], seasonID))
		}

		writeResponse(w, NewJSONResponse(fmt.Sprintf(`{"data":[%s],"total":%d}`,
			strings.Join(rows, ","), len(ids))))
	})
}

// SetPlayerLanding configures the landing document of one player.
func (m *MockNHL) SetPlayerLanding(playerID int64, body string) {
	m.SetResponse(LandingPath(playerID), NewJSONResponse(body))
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockNHL) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// PathCount returns the number of requests made to path.
func (m *MockNHL) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// Queries returns the query strings received on path, in arrival order.
func (m *MockNHL) Queries(path string) []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.queries[path]))
	copy(out, m.queries[path])
	return out
}

// LastHeader returns the headers of the most recent request.
func (m *MockNHL) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// LandingPath returns the detail path of a player.
func LandingPath(playerID int64) string {
	return fmt.Sprintf("/v1/player/%d/landing", playerID)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
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
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too Many Requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 5xx response with the given status.
func NewServerErrorResponse(status int) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"message":%q}`, http.StatusText(status)),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
