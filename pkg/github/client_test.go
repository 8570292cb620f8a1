package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/github-stars-collector/internal/testutil"
	"github.com/Sternrassler/github-stars-collector/pkg/cache"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(Config{Endpoint: endpoint, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.config.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", client.config.Endpoint, DefaultEndpoint)
	}
	if client.SearchQuery() != DefaultSearchQuery {
		t.Errorf("SearchQuery() = %q, want %q", client.SearchQuery(), DefaultSearchQuery)
	}
	if client.config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", client.config.Timeout)
	}
}

func TestFetchPageSuccess(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	resetAt := time.Now().Add(time.Hour).Truncate(time.Second)
	mock.Enqueue(testutil.NewSearchPage(
		[]string{"torvalds/linux", "golang/go", "rust-lang/rust"},
		"cursor-3", true, 4999, resetAt,
	))

	client := newTestClient(t, mock.URL())
	page, err := client.FetchPage(context.Background(), "token-a", "", 3)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if len(page.Repositories) != 3 {
		t.Fatalf("len(Repositories) = %d, want 3", len(page.Repositories))
	}
	first := page.Repositories[0]
	if first.NameWithOwner != "torvalds/linux" {
		t.Errorf("NameWithOwner = %q, want torvalds/linux", first.NameWithOwner)
	}
	if first.URL != "https://github.com/torvalds/linux" {
		t.Errorf("URL = %q", first.URL)
	}
	if first.Stars != 100000 {
		t.Errorf("Stars = %d, want 100000", first.Stars)
	}
	if first.PrimaryLanguage != "Go" {
		t.Errorf("PrimaryLanguage = %q, want Go", first.PrimaryLanguage)
	}
	if first.MergedPullRequests != 120 {
		t.Errorf("MergedPullRequests = %d, want 120", first.MergedPullRequests)
	}
	if first.TotalIssues != 50 || first.ClosedIssues != 40 {
		t.Errorf("issues = %d/%d, want 50/40", first.TotalIssues, first.ClosedIssues)
	}

	if page.EndCursor != "cursor-3" {
		t.Errorf("EndCursor = %q, want cursor-3", page.EndCursor)
	}
	if !page.HasNextPage {
		t.Error("HasNextPage = false, want true")
	}
	if page.FromCache {
		t.Error("FromCache = true for a network fetch")
	}

	if page.RateLimit == nil {
		t.Fatal("RateLimit = nil, want parsed state")
	}
	if page.RateLimit.Remaining != 4999 {
		t.Errorf("RateLimit.Remaining = %d, want 4999", page.RateLimit.Remaining)
	}
	if !page.RateLimit.ResetAt.Equal(resetAt) {
		t.Errorf("RateLimit.ResetAt = %v, want %v", page.RateLimit.ResetAt, resetAt)
	}

	requests := mock.Requests()
	if len(requests) != 1 {
		t.Fatalf("RequestCount = %d, want 1", len(requests))
	}
	if requests[0].Token != "token-a" {
		t.Errorf("Token = %q, want token-a", requests[0].Token)
	}
	if requests[0].First != 3 {
		t.Errorf("variables.first = %d, want 3", requests[0].First)
	}
	if requests[0].After != "" {
		t.Errorf("variables.after = %q, want null", requests[0].After)
	}
	if requests[0].SearchQuery != DefaultSearchQuery {
		t.Errorf("variables.searchQuery = %q, want %q", requests[0].SearchQuery, DefaultSearchQuery)
	}
}

func TestFetchPagePassesCursor(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.NewSearchPage([]string{"golang/go"}, "cursor-next", false, 100, time.Now().Add(time.Hour)))

	client := newTestClient(t, mock.URL())
	if _, err := client.FetchPage(context.Background(), "token-a", "cursor-prev", 1); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	requests := mock.Requests()
	if requests[0].After != "cursor-prev" {
		t.Errorf("variables.after = %q, want cursor-prev", requests[0].After)
	}
}

func TestFetchPageClampsPageSize(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.NewSearchPage(nil, "", false, 100, time.Now().Add(time.Hour)))

	client := newTestClient(t, mock.URL())
	if _, err := client.FetchPage(context.Background(), "token-a", "", 250); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	requests := mock.Requests()
	if requests[0].First != MaxPageSize {
		t.Errorf("variables.first = %d, want clamp to %d", requests[0].First, MaxPageSize)
	}
}

func TestFetchPageRejectsNonPositivePageSize(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	client := newTestClient(t, mock.URL())
	for _, pageSize := range []int{0, -5} {
		_, err := client.FetchPage(context.Background(), "token-a", "", pageSize)
		if err == nil {
			t.Fatalf("FetchPage(pageSize=%d) error = nil, want client error", pageSize)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Class != ErrorClassClient {
			t.Errorf("FetchPage(pageSize=%d) error = %v, want client class", pageSize, err)
		}
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount())
	}
}

func TestFetchPageRateLimited(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	resetAt := time.Now().Add(20 * time.Minute).Truncate(time.Second)
	mock.Enqueue(testutil.NewRateLimited(resetAt))

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !IsRateLimited(err) {
		t.Fatalf("FetchPage() error = %v, want rate limited", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *APIError: %v", err)
	}
	if apiErr.RateLimit == nil {
		t.Fatal("RateLimit = nil, want header state")
	}
	if apiErr.RateLimit.Remaining != 0 {
		t.Errorf("RateLimit.Remaining = %d, want 0", apiErr.RateLimit.Remaining)
	}
	if !apiErr.RateLimit.ResetAt.Equal(resetAt) {
		t.Errorf("RateLimit.ResetAt = %v, want %v", apiErr.RateLimit.ResetAt, resetAt)
	}
}

func TestFetchPageRateLimitedWithoutMetadata(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.NewRateLimitedNoMetadata())

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !IsRateLimited(err) {
		t.Fatalf("FetchPage() error = %v, want rate limited", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *APIError: %v", err)
	}
	// No headers, no Retry-After: the caller must apply its own fallback.
	if apiErr.RateLimit != nil {
		t.Errorf("RateLimit = %+v, want nil", apiErr.RateLimit)
	}
}

func TestFetchPageRateLimitedRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "rate limit exceeded"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	before := time.Now()
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !IsRateLimited(err) {
		t.Fatalf("FetchPage() error = %v, want rate limited", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *APIError: %v", err)
	}
	if apiErr.RateLimit == nil {
		t.Fatal("RateLimit = nil, want Retry-After derived state")
	}
	wantReset := before.Add(30 * time.Second)
	if apiErr.RateLimit.ResetAt.Before(wantReset) || apiErr.RateLimit.ResetAt.After(wantReset.Add(5*time.Second)) {
		t.Errorf("RateLimit.ResetAt = %v, want about %v", apiErr.RateLimit.ResetAt, wantReset)
	}
}

func TestFetchPageGraphQLRateLimited(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	resetAt := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	mock.Enqueue(testutil.NewGraphQLRateLimited(resetAt))

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !IsRateLimited(err) {
		t.Fatalf("FetchPage() error = %v, want rate limited", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *APIError: %v", err)
	}
	if apiErr.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200 for in-band error", apiErr.StatusCode)
	}
	if apiErr.RateLimit == nil || !apiErr.RateLimit.ResetAt.Equal(resetAt) {
		t.Errorf("RateLimit = %+v, want reset at %v", apiErr.RateLimit, resetAt)
	}
}

func TestFetchPageAuthenticationError(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.NewAuthFailure())

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(context.Background(), "bad-token", "", 10)
	if !IsAuthentication(err) {
		t.Fatalf("FetchPage() error = %v, want authentication", err)
	}
	if IsRateLimited(err) || IsTransient(err) {
		t.Errorf("error %v classified as more than authentication", err)
	}
}

func TestFetchPageServerError(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.NewServerError())

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !IsTransient(err) {
		t.Fatalf("FetchPage() error = %v, want transient", err)
	}
}

func TestFetchPageNetworkError(t *testing.T) {
	mock := testutil.NewMockGitHub()
	endpoint := mock.URL()
	mock.Close()

	client := newTestClient(t, endpoint)
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !IsTransient(err) {
		t.Fatalf("FetchPage() error = %v, want transient", err)
	}
}

func TestFetchPageContextCancelled(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(ctx, "token-a", "", 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FetchPage() error = %v, want context.Canceled", err)
	}
	if IsTransient(err) {
		t.Error("cancellation classified as transient")
	}
}

func TestFetchPageMalformedBody(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": {"search"`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !IsTransient(err) {
		t.Fatalf("FetchPage() error = %v, want transient", err)
	}
}

func TestFetchPageMissingData(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	client := newTestClient(t, mock.URL())
	_, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("FetchPage() error = %v, want ErrNoData", err)
	}
}

func TestFetchPageSkipsNullNodes(t *testing.T) {
	body := `{
		"data": {
			"search": {
				"pageInfo": {"hasNextPage": false, "endCursor": "end"},
				"nodes": [
					null,
					{
						"nameWithOwner": "golang/go",
						"url": "https://github.com/golang/go",
						"stargazerCount": 120000,
						"createdAt": "2014-08-19T00:00:00Z",
						"pushedAt": "2025-08-20T00:00:00Z",
						"primaryLanguage": null,
						"pullRequests": {"totalCount": 4000},
						"releases": {"totalCount": 0},
						"totalIssues": {"totalCount": 60000},
						"closedIssues": {"totalCount": 55000}
					}
				]
			}
		}
	}`

	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	client := newTestClient(t, mock.URL())
	page, err := client.FetchPage(context.Background(), "token-a", "", 10)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Repositories) != 1 {
		t.Fatalf("len(Repositories) = %d, want 1", len(page.Repositories))
	}
	if page.Repositories[0].PrimaryLanguage != "" {
		t.Errorf("PrimaryLanguage = %q, want empty for null language", page.Repositories[0].PrimaryLanguage)
	}
	// Missing headers leave the quota state unknown.
	if page.RateLimit != nil {
		t.Errorf("RateLimit = %+v, want nil", page.RateLimit)
	}
}

// setupClientCache connects to a local Redis for cache round-trip tests and
// skips when none is running.
func setupClientCache(t *testing.T) *cache.Manager {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   14,
	})

	ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelCtx()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at localhost:6379: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush test database: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return cache.NewManager(client)
}

func TestFetchPageCacheRoundTrip(t *testing.T) {
	manager := setupClientCache(t)

	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.Enqueue(testutil.NewSearchPage([]string{"golang/go"}, "cursor-1", true, 4999, time.Now().Add(time.Hour)))

	client, err := NewClient(Config{Endpoint: mock.URL(), Cache: manager})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx := context.Background()
	first, err := client.FetchPage(ctx, "token-a", "", 1)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if first.FromCache {
		t.Error("first fetch FromCache = true")
	}

	second, err := client.FetchPage(ctx, "token-b", "", 1)
	if err != nil {
		t.Fatalf("FetchPage() cached error = %v", err)
	}
	if !second.FromCache {
		t.Error("second fetch FromCache = false, want cache hit")
	}
	if second.RateLimit != nil {
		t.Errorf("cached RateLimit = %+v, want nil", second.RateLimit)
	}
	if second.EndCursor != "cursor-1" {
		t.Errorf("cached EndCursor = %q, want cursor-1", second.EndCursor)
	}
	if len(second.Repositories) != 1 || second.Repositories[0].NameWithOwner != "golang/go" {
		t.Errorf("cached Repositories = %+v", second.Repositories)
	}

	// The replay must not touch the network.
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
	}
}

func TestSearchDocumentShape(t *testing.T) {
	for _, fragment := range []string{
		"query ($searchQuery: String!, $first: Int!, $after: String)",
		"search(query: $searchQuery, type: REPOSITORY, first: $first, after: $after)",
		"... on Repository",
		"pullRequests(states: MERGED, first: 1)",
		"totalIssues: issues(first: 1)",
		"closedIssues: issues(states: CLOSED, first: 1)",
	} {
		if !strings.Contains(searchDocument, fragment) {
			t.Errorf("search document missing %q", fragment)
		}
	}
}
