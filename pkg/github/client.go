// Package github implements the page fetcher for the GitHub GraphQL search
// API: one call fetches one page of the most-starred repositories, returning
// the records, the continuation cursor, and the rate-limit state observed on
// the credential used.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/github-stars-collector/pkg/cache"
	"github.com/Sternrassler/github-stars-collector/pkg/credentials"
	"github.com/Sternrassler/github-stars-collector/pkg/logging"
	"github.com/Sternrassler/github-stars-collector/pkg/quota"
)

// Prometheus metrics for API calls.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_api_requests_total",
		Help: "Total GraphQL search requests by outcome",
	}, []string{"status"})

	apiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_api_request_duration_seconds",
		Help:    "GraphQL search request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_api_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})
)

// Config holds the fetcher configuration.
type Config struct {
	// Endpoint is the GraphQL endpoint URL (default: the public GitHub API).
	Endpoint string

	// SearchQuery selects and orders the repositories to collect.
	SearchQuery string

	// UserAgent identifies the collector to the API.
	UserAgent string

	// Timeout bounds each fetch call (default 30s).
	Timeout time.Duration

	// HTTPClient overrides the default HTTP client, mainly for tests.
	HTTPClient *http.Client

	// Cache, when set, serves pages before the network and stores fetched
	// pages after. Cache hits spend no API quota.
	Cache *cache.Manager

	// CacheTTL bounds the lifetime of stored pages (default cache.DefaultTTL).
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration for the public GitHub API.
func DefaultConfig() Config {
	return Config{
		Endpoint:    DefaultEndpoint,
		SearchQuery: DefaultSearchQuery,
		UserAgent:   "github-stars-collector/1.0",
		Timeout:     30 * time.Second,
		CacheTTL:    cache.DefaultTTL,
	}
}

// Client fetches search pages. It satisfies the pagination engine's fetcher
// contract.
type Client struct {
	httpClient *http.Client
	config     Config
	cache      *cache.Manager
	logger     zerolog.Logger
}

// NewClient creates a fetcher. Zero-value config fields fall back to
// DefaultConfig values; an unparseable endpoint is rejected.
func NewClient(cfg Config) (*Client, error) {
	defaults := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.SearchQuery == "" {
		cfg.SearchQuery = defaults.SearchQuery
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		cache:      cfg.Cache,
		logger:     logging.NewLogger("github"),
	}, nil
}

// SearchQuery returns the search query this client fetches pages for.
func (c *Client) SearchQuery() string {
	return c.config.SearchQuery
}

// FetchPage executes one search call for up to pageSize records after cursor,
// authorized with the given credential. An empty cursor starts from the
// beginning. Page sizes above MaxPageSize are clamped.
//
// Failures are returned as *APIError: transient errors may be retried with
// the same or a different credential, rate-limit errors carry any observed
// quota state, and authentication errors mean the credential must never be
// used again this run.
func (c *Client) FetchPage(ctx context.Context, cred credentials.Credential, cursor string, pageSize int) (*Page, error) {
	if pageSize <= 0 {
		return nil, &APIError{Class: ErrorClassClient, Message: fmt.Sprintf("page size must be positive, got %d", pageSize)}
	}
	if pageSize > MaxPageSize {
		c.logger.Debug().
			Int("requested", pageSize).
			Int("clamped", MaxPageSize).
			Msg("Page size clamped to API maximum")
		pageSize = MaxPageSize
	}

	key := cache.PageKey{Query: c.config.SearchQuery, Cursor: cursor, PageSize: pageSize}
	if page, ok := c.cachedPage(ctx, key); ok {
		return page, nil
	}

	page, err := c.fetchRemote(ctx, cred, cursor, pageSize)
	if err != nil {
		return nil, err
	}

	c.storePage(ctx, key, page)
	return page, nil
}

// cachedPage replays a page from the cache, when one is stored and intact.
func (c *Client) cachedPage(ctx context.Context, key cache.PageKey) (*Page, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Msg("Cache get error, falling back to direct fetch")
		}
		return nil, false
	}

	var page Page
	if err := json.Unmarshal(entry.Payload, &page); err != nil {
		c.logger.Warn().Err(err).Msg("Corrupt cache entry, falling back to direct fetch")
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}

	// Stored quota state is stale; a replayed page spends none.
	page.FromCache = true
	page.RateLimit = nil

	c.logger.Debug().
		Str("cursor", cursorLabel(key.Cursor)).
		Int("records", len(page.Repositories)).
		Msg("Page served from cache")

	return &page, true
}

// storePage caches a fetched page, logging instead of failing on errors.
func (c *Client) storePage(ctx context.Context, key cache.PageKey, page *Page) {
	if c.cache == nil {
		return
	}

	payload, err := json.Marshal(page)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to serialize page for cache")
		return
	}
	if err := c.cache.Set(ctx, key, cache.NewEntry(payload, c.config.CacheTTL)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache page")
	}
}

func (c *Client) fetchRemote(ctx context.Context, cred credentials.Credential, cursor string, pageSize int) (*Page, error) {
	body := graphqlRequest{
		Query: searchDocument,
		Variables: searchVariables{
			SearchQuery: c.config.SearchQuery,
			First:       pageSize,
			After:       afterValue(cursor),
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &APIError{Class: ErrorClassClient, Message: "marshal request", Err: err}
	}

	reqCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &APIError{Class: ErrorClassClient, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+string(cred))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("credential", cred.Mask()).
		Str("cursor", cursorLabel(cursor)).
		Int("page_size", pageSize).
		Msg("Executing search request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	apiRequestDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		// Cancellation of the run is not a fetch failure; surface it as-is
		// so the engine can distinguish it from a flaky network.
		if ctx.Err() != nil {
			apiRequestsTotal.WithLabelValues("cancelled").Inc()
			return nil, ctx.Err()
		}
		apiRequestsTotal.WithLabelValues("network_error").Inc()
		apiErrorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		return nil, &APIError{Class: ErrorClassTransient, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	var rateLimit *quota.State
	if state, ok := quota.ParseHeaders(resp.Header); ok {
		rateLimit = &state
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp, rateLimit)
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassTransient,
			Message:    "decode response",
			RateLimit:  rateLimit,
			Err:        err,
		}
	}

	// GraphQL reports failures in-band with HTTP 200.
	if len(decoded.Errors) > 0 {
		class := ErrorClassClient
		if isRateLimitError(decoded.Errors) {
			class = ErrorClassRateLimit
			rateLimit = c.rateLimitState(resp.Header, rateLimit)
		}
		apiErrorsTotal.WithLabelValues(string(class)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    joinErrorMessages(decoded.Errors),
			RateLimit:  rateLimit,
		}
	}

	if decoded.Data == nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassClient,
			Message:    "response contained no data",
			RateLimit:  rateLimit,
			Err:        ErrNoData,
		}
	}

	page := &Page{
		EndCursor:   decoded.Data.Search.PageInfo.EndCursor,
		HasNextPage: decoded.Data.Search.PageInfo.HasNextPage,
		RateLimit:   rateLimit,
	}
	for _, node := range decoded.Data.Search.Nodes {
		// Search can return null nodes for records hidden mid-query.
		if node == nil {
			continue
		}
		page.Repositories = append(page.Repositories, node.toRepository())
	}

	c.logger.Debug().
		Str("credential", cred.Mask()).
		Int("records", len(page.Repositories)).
		Bool("has_next", page.HasNextPage).
		Msg("Page fetched")

	return page, nil
}

// errorFromResponse turns a non-200 response into a classified APIError.
func (c *Client) errorFromResponse(resp *http.Response, rateLimit *quota.State) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	class := classifyStatus(resp.StatusCode)
	// Secondary rate limits sometimes arrive with unexpected statuses; the
	// body names them.
	if class == ErrorClassClient && strings.Contains(strings.ToLower(string(raw)), "rate limit") {
		class = ErrorClassRateLimit
	}
	if class == ErrorClassRateLimit {
		rateLimit = c.rateLimitState(resp.Header, rateLimit)
	}

	message := strings.TrimSpace(string(raw))
	if message == "" {
		message = resp.Status
	}

	apiErrorsTotal.WithLabelValues(string(class)).Inc()

	return &APIError{
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    message,
		RateLimit:  rateLimit,
	}
}

// rateLimitState fills in a usable reset time for a rate-limited response,
// preferring header state and falling back to Retry-After.
func (c *Client) rateLimitState(headers http.Header, observed *quota.State) *quota.State {
	retryAfter, hasRetryAfter := parseRetryAfter(headers)

	if observed != nil {
		if observed.ResetAt.IsZero() && hasRetryAfter {
			patched := *observed
			patched.ResetAt = time.Now().Add(retryAfter)
			return &patched
		}
		return observed
	}
	if hasRetryAfter {
		return &quota.State{Remaining: 0, ResetAt: time.Now().Add(retryAfter)}
	}
	return nil
}

// parseRetryAfter reads the Retry-After header as integer seconds.
func parseRetryAfter(headers http.Header) (time.Duration, bool) {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// afterValue maps the empty start cursor to GraphQL null.
func afterValue(cursor string) *string {
	if cursor == "" {
		return nil
	}
	return &cursor
}

func cursorLabel(cursor string) string {
	if cursor == "" {
		return "start"
	}
	return cursor
}
