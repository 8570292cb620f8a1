// Package testutil provides testing utilities for the collector.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines one scripted response from the mock GraphQL endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RequestRecord captures one request the mock served, in arrival order. Tests
// assert credential rotation by reading the Token sequence.
type RequestRecord struct {
	// Token is the bearer token presented in the Authorization header.
	Token string

	// SearchQuery, First, and After are the GraphQL variables sent.
	SearchQuery string
	First       int
	After       string
}

// MockGitHub is a scripted mock of the GraphQL search endpoint. Responses are
// served in FIFO order; once the queue is empty every request gets an empty
// final page with healthy rate-limit headers.
type MockGitHub struct {
	server   *httptest.Server
	mu       sync.Mutex
	queue    []MockResponse
	requests []RequestRecord
}

// NewMockGitHub creates a started mock server. Callers own Close.
func NewMockGitHub() *MockGitHub {
	mock := &MockGitHub{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := RequestRecord{
			Token: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		}

		var body struct {
			Variables struct {
				SearchQuery string  `json:"searchQuery"`
				First       int     `json:"first"`
				After       *string `json:"after"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			record.SearchQuery = body.Variables.SearchQuery
			record.First = body.Variables.First
			if body.Variables.After != nil {
				record.After = *body.Variables.After
			}
		}

		mock.mu.Lock()
		mock.requests = append(mock.requests, record)
		var resp MockResponse
		if len(mock.queue) > 0 {
			resp = mock.queue[0]
			mock.queue = mock.queue[1:]
		} else {
			resp = NewSearchPage(nil, "", false, 4000, time.Now().Add(time.Hour))
		}
		mock.mu.Unlock()

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.StatusCode == 0 {
			resp.StatusCode = http.StatusOK
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// Enqueue appends scripted responses to the queue.
func (m *MockGitHub) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// Requests returns a copy of the captured requests in arrival order.
func (m *MockGitHub) Requests() []RequestRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RequestRecord, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests served.
func (m *MockGitHub) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Tokens returns the bearer tokens of all served requests in order.
func (m *MockGitHub) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := make([]string, len(m.requests))
	for i, r := range m.requests {
		tokens[i] = r.Token
	}
	return tokens
}

// rateLimitHeaders builds the standard quota headers.
func rateLimitHeaders(remaining int, resetAt time.Time) map[string]string {
	return map[string]string{
		"X-RateLimit-Remaining": strconv.Itoa(remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(resetAt.Unix(), 10),
		"Content-Type":          "application/json; charset=utf-8",
	}
}

// SearchPageBody builds a 200 GraphQL body containing one repository node per
// name, with deterministic metadata derived from the position.
func SearchPageBody(names []string, endCursor string, hasNext bool) string {
	type count struct {
		TotalCount int `json:"totalCount"`
	}
	type node struct {
		NameWithOwner   string `json:"nameWithOwner"`
		URL             string `json:"url"`
		StargazerCount  int    `json:"stargazerCount"`
		CreatedAt       string `json:"createdAt"`
		PushedAt        string `json:"pushedAt"`
		PrimaryLanguage *struct {
			Name string `json:"name"`
		} `json:"primaryLanguage"`
		PullRequests count `json:"pullRequests"`
		Releases     count `json:"releases"`
		TotalIssues  count `json:"totalIssues"`
		ClosedIssues count `json:"closedIssues"`
	}

	nodes := make([]node, len(names))
	for i, name := range names {
		nodes[i] = node{
			NameWithOwner: name,
			URL:           "https://github.com/" + name,
			// Descending stars keep pages consistent with the sort order.
			StargazerCount: 100000 - i,
			CreatedAt:      "2019-05-01T00:00:00Z",
			PushedAt:       "2025-08-01T12:00:00Z",
			PrimaryLanguage: &struct {
				Name string `json:"name"`
			}{Name: "Go"},
			PullRequests: count{TotalCount: 120 + i},
			Releases:     count{TotalCount: 8},
			TotalIssues:  count{TotalCount: 50},
			ClosedIssues: count{TotalCount: 40},
		}
	}

	payload := map[string]any{
		"data": map[string]any{
			"search": map[string]any{
				"pageInfo": map[string]any{
					"hasNextPage": hasNext,
					"endCursor":   endCursor,
				},
				"nodes": nodes,
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal search page: %v", err))
	}
	return string(raw)
}

// NewSearchPage builds a scripted 200 search response with quota headers.
func NewSearchPage(names []string, endCursor string, hasNext bool, remaining int, resetAt time.Time) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       SearchPageBody(names, endCursor, hasNext),
		Headers:    rateLimitHeaders(remaining, resetAt),
	}
}

// NewRateLimited builds a 403 rate-limit rejection carrying quota headers.
func NewRateLimited(resetAt time.Time) MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "API rate limit exceeded"}`,
		Headers:    rateLimitHeaders(0, resetAt),
	}
}

// NewRateLimitedNoMetadata builds a 403 rate-limit rejection with no quota
// headers at all, forcing callers onto their fallback reset delay.
func NewRateLimitedNoMetadata() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "You have exceeded a secondary rate limit"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewGraphQLRateLimited builds a 200 response whose GraphQL errors signal
// rate limiting, the in-band variant GitHub uses for query cost limits.
func NewGraphQLRateLimited(resetAt time.Time) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"errors": [{"type": "RATE_LIMITED", "message": "API rate limit exceeded"}]}`,
		Headers:    rateLimitHeaders(0, resetAt),
	}
}

// NewAuthFailure builds a 401 invalid-credential response.
func NewAuthFailure() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Bad credentials"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerError builds a 502 transient failure.
func NewServerError() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       `{"message": "Server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
