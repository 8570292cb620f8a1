package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/github-stars-collector/pkg/credentials"
	"github.com/Sternrassler/github-stars-collector/pkg/github"
	"github.com/Sternrassler/github-stars-collector/pkg/logging"
	"github.com/Sternrassler/github-stars-collector/pkg/quota"
)

// Prometheus metrics for collection runs.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_pages_fetched_total",
		Help: "Total number of result pages folded into the collected set",
	})

	recordsCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_records_collected_total",
		Help: "Total number of repository records collected",
	})

	rotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_rotations_total",
		Help: "Total number of credential rotations",
	})

	rateLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_rate_limit_hits_total",
		Help: "Total number of rate-limit rejections observed",
	})

	pausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_pauses_total",
		Help: "Total number of full-pool pauses waiting for a quota reset",
	})

	pauseSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_pause_seconds",
		Help:    "Time spent paused waiting for quota resets",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)

// PageFetcher is the fetch contract the engine drives. *github.Client
// implements it; tests substitute scripted fakes.
type PageFetcher interface {
	FetchPage(ctx context.Context, cred credentials.Credential, cursor string, pageSize int) (*github.Page, error)
}

// Config holds the engine configuration.
type Config struct {
	// Target is the total number of records to collect. Zero or negative
	// completes immediately with an empty result and no network call.
	Target int

	// PageSize is the number of records requested per search call, clamped
	// to the API maximum.
	PageSize int

	// Retry bounds the in-place retries of transient fetch failures.
	Retry RetryConfig

	// FallbackResetDelay is the assumed quota reset delay when a rate-limit
	// rejection carries no reset metadata (default 60s).
	FallbackResetDelay time.Duration

	// PageDelay is a politeness delay between consecutive live fetches.
	// Pages replayed from cache skip it.
	PageDelay time.Duration

	// LowQuotaThreshold rotates the active credential early once its
	// remaining budget drops to this value. Negative disables early
	// rotation.
	LowQuotaThreshold int

	// ResetBuffer pads the pause past the reported reset time, absorbing
	// clock skew against the API.
	ResetBuffer time.Duration

	// RunDeadline bounds the whole run including pauses. Zero means no
	// deadline.
	RunDeadline time.Duration
}

// DefaultConfig returns the default collection parameters.
func DefaultConfig() Config {
	return Config{
		Target:             100,
		PageSize:           10,
		Retry:              DefaultRetryConfig(),
		FallbackResetDelay: 60 * time.Second,
		PageDelay:          1 * time.Second,
		LowQuotaThreshold:  1,
		ResetBuffer:        2 * time.Second,
	}
}

// Result is the outcome of a run.
type Result struct {
	// Records are the collected repositories in API order.
	Records []github.Repository

	// Cursor is the final continuation cursor, usable to resume collection
	// elsewhere.
	Cursor string

	// State is the terminal state, StateDone or StateFailed.
	State State

	// Pages counts the fetched pages, Rotations the credential switches.
	Pages     int
	Rotations int
}

// Engine walks the paginated search with a pool of credentials, rotating
// before exhaustion and pausing for quota resets, so the collected stream
// continues across individual credentials hitting their limits.
type Engine struct {
	config  Config
	pool    *credentials.Pool
	tracker *quota.Tracker
	fetcher PageFetcher
	logger  zerolog.Logger
}

// New validates the wiring and returns an engine. The pool and tracker are
// owned by this engine for the duration of its runs.
func New(pool *credentials.Pool, tracker *quota.Tracker, fetcher PageFetcher, config Config) (*Engine, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: credential pool is required", ErrInvalidConfig)
	}
	if tracker == nil {
		return nil, fmt.Errorf("%w: quota tracker is required", ErrInvalidConfig)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: page fetcher is required", ErrInvalidConfig)
	}
	if config.PageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidConfig, config.PageSize)
	}
	if config.PageSize > github.MaxPageSize {
		config.PageSize = github.MaxPageSize
	}
	if config.FallbackResetDelay <= 0 {
		config.FallbackResetDelay = 60 * time.Second
	}
	config.Retry = config.Retry.normalized()

	return &Engine{
		config:  config,
		pool:    pool,
		tracker: tracker,
		fetcher: fetcher,
		logger:  logging.NewLogger("pagination"),
	}, nil
}

// runState is the mutable state of one run; each Run gets a fresh one.
type runState struct {
	state     State
	records   []github.Repository
	cursor    string
	page      *github.Page
	retries   int
	pages     int
	rotations int
	failure   error
}

func (r *runState) fail(err error) {
	r.failure = err
	r.state = StateFailed
}

func (r *runState) result(state State) *Result {
	return &Result{
		Records:   r.records,
		Cursor:    r.cursor,
		State:     state,
		Pages:     r.pages,
		Rotations: r.rotations,
	}
}

// Run collects up to Target records and returns them with the final cursor.
// On failure the returned Result still carries everything collected so far,
// and the error is a *RunError wrapping the cause.
//
// Cancelling ctx stops the run at the next state transition, including
// mid-pause. A single Engine must not run concurrently with itself.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.config.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RunDeadline)
		defer cancel()
	}

	run := &runState{state: StateFetching}
	if e.config.Target <= 0 {
		run.state = StateDone
	}
	if e.config.Target > github.SearchResultCap {
		e.logger.Warn().
			Int("target", e.config.Target).
			Int("cap", github.SearchResultCap).
			Msg("Target exceeds the search result cap, the API stops paging early")
	}

	e.logger.Info().
		Int("target", e.config.Target).
		Int("page_size", e.config.PageSize).
		Int("credentials", e.pool.Size()).
		Msg("Collection run starting")

	start := time.Now()
	for {
		// Cancellation is honored at every state transition, so even a
		// long quota-reset wait stops promptly.
		if !run.state.Terminal() {
			if err := ctx.Err(); err != nil {
				run.fail(err)
			}
		}

		switch run.state {
		case StateFetching:
			e.stepFetch(ctx, run)
		case StateAdvancing:
			e.stepAdvance(ctx, run)
		case StateRotating:
			e.stepRotate(run)
		case StatePaused:
			e.stepPause(ctx, run)
		case StateDone:
			result := run.result(StateDone)
			e.logger.Info().
				Int("records", len(result.Records)).
				Int("pages", result.Pages).
				Int("rotations", result.Rotations).
				Dur("duration", time.Since(start)).
				Msg("Collection run complete")
			return result, nil
		case StateFailed:
			result := run.result(StateFailed)
			e.logger.Error().
				Err(run.failure).
				Int("records", len(result.Records)).
				Int("pages", result.Pages).
				Dur("duration", time.Since(start)).
				Msg("Collection run failed, returning partial results")
			return result, &RunError{Cause: run.failure, Collected: result.Records}
		}
	}
}

// stepFetch executes one search call with the active credential.
func (e *Engine) stepFetch(ctx context.Context, run *runState) {
	cred := e.pool.Current()

	// Pre-check so a known-exhausted credential costs no network call.
	if e.tracker.IsExhausted(cred, time.Now()) {
		e.logger.Debug().
			Str("credential", cred.Mask()).
			Msg("Active credential exhausted before fetch, rotating")
		run.state = StateRotating
		return
	}

	batch := e.config.PageSize
	if left := e.config.Target - len(run.records); left < batch {
		batch = left
	}

	page, err := e.fetcher.FetchPage(ctx, cred, run.cursor, batch)
	if err != nil {
		e.handleFetchError(ctx, run, cred, err)
		return
	}

	run.retries = 0
	run.page = page
	run.state = StateAdvancing
}

// handleFetchError maps a failed fetch onto the next state.
func (e *Engine) handleFetchError(ctx context.Context, run *runState, cred credentials.Credential, err error) {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		run.fail(err)

	case github.IsRateLimited(err):
		rateLimitHitsTotal.Inc()
		resetAt := e.exhaustionReset(err)
		e.tracker.MarkExhausted(cred, resetAt)
		e.logger.Warn().
			Str("credential", cred.Mask()).
			Time("reset_at", resetAt).
			Msg("Credential rate limited, rotating")
		run.state = StateRotating

	case github.IsAuthentication(err):
		e.pool.Revoke(cred)
		e.logger.Warn().
			Str("credential", cred.Mask()).
			Msg("Credential rejected, removed from rotation for this run")
		run.state = StateRotating

	case github.IsTransient(err):
		run.retries++
		if run.retries >= e.config.Retry.MaxAttempts {
			run.fail(fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, e.config.Retry.MaxAttempts, err))
			return
		}
		if waitErr := e.waitBackoff(ctx, run.retries); waitErr != nil {
			run.fail(waitErr)
		}
		// State stays FETCHING for the next attempt.

	default:
		run.fail(err)
	}
}

// exhaustionReset picks the reset time to record for a rate-limited
// credential: the API-reported one when present, otherwise a conservative
// fallback delay from now.
func (e *Engine) exhaustionReset(err error) time.Time {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) && apiErr.RateLimit != nil && !apiErr.RateLimit.ResetAt.IsZero() {
		return apiErr.RateLimit.ResetAt
	}
	return time.Now().Add(e.config.FallbackResetDelay)
}

// waitBackoff suspends before the given retry, honoring cancellation.
func (e *Engine) waitBackoff(ctx context.Context, retry int) error {
	backoff := e.config.Retry.backoffFor(retry)
	transientRetriesTotal.Inc()
	retryBackoffSeconds.Observe(backoff.Seconds())

	e.logger.Debug().
		Int("retry", retry).
		Dur("backoff", backoff).
		Msg("Retrying fetch after backoff")

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stepAdvance folds the fetched page into the run and decides what follows:
// done, an early rotation, or the next fetch on the same credential.
func (e *Engine) stepAdvance(ctx context.Context, run *runState) {
	page := run.page
	run.page = nil
	cred := e.pool.Current()

	run.records = append(run.records, page.Repositories...)
	run.pages++
	pagesFetchedTotal.Inc()
	recordsCollectedTotal.Add(float64(len(page.Repositories)))

	// A replayed page spent no quota, so it must not overwrite a fresher
	// report for this credential.
	if !page.FromCache && page.RateLimit != nil {
		e.tracker.Update(cred, page.RateLimit.Remaining, page.RateLimit.ResetAt)
	}

	if page.EndCursor != "" {
		run.cursor = page.EndCursor
	}

	e.logger.Debug().
		Str("credential", cred.Mask()).
		Int("collected", len(run.records)).
		Int("target", e.config.Target).
		Bool("has_next", page.HasNextPage).
		Bool("cache_hit", page.FromCache).
		Msg("Page advanced")

	if len(run.records) >= e.config.Target || !page.HasNextPage {
		run.state = StateDone
		return
	}

	// Rotating just before a credential runs dry keeps the stream moving
	// without spending its final calls on rejections.
	if e.tracker.NearExhaustion(cred, e.config.LowQuotaThreshold, time.Now()) {
		e.logger.Debug().
			Str("credential", cred.Mask()).
			Msg("Active credential near exhaustion, rotating early")
		run.state = StateRotating
		return
	}

	if e.config.PageDelay > 0 && !page.FromCache {
		timer := time.NewTimer(e.config.PageDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			run.fail(ctx.Err())
			return
		case <-timer.C:
		}
	}
	run.state = StateFetching
}

// stepRotate advances to the next usable credential, or pauses when none
// remains.
func (e *Engine) stepRotate(run *runState) {
	now := time.Now()

	exhausted := make(map[credentials.Credential]bool)
	for _, cred := range e.pool.Credentials() {
		if e.tracker.IsExhausted(cred, now) {
			exhausted[cred] = true
		}
	}
	if !e.pool.HasUntried(exhausted) {
		run.state = StatePaused
		return
	}

	for i := 0; i < e.pool.Size(); i++ {
		cred := e.pool.Rotate()
		if e.pool.Revoked(cred) || e.tracker.IsExhausted(cred, now) {
			continue
		}
		run.rotations++
		rotationsTotal.Inc()
		e.logger.Info().
			Str("credential", cred.Mask()).
			Int("rotations", run.rotations).
			Msg("Rotated to next credential")
		run.state = StateFetching
		return
	}

	run.state = StatePaused
}

// stepPause suspends until the soonest known quota reset, then rotates to
// re-attempt. With nothing to wait for the run fails.
func (e *Engine) stepPause(ctx context.Context, run *runState) {
	now := time.Now()

	candidates := make([]credentials.Credential, 0, e.pool.Size())
	for _, cred := range e.pool.Credentials() {
		if !e.pool.Revoked(cred) {
			candidates = append(candidates, cred)
		}
	}

	resetAt, ok := e.tracker.SoonestReset(candidates, now)
	if !ok {
		// A reset can slip into the past between the rotate check and
		// here; such credentials are usable again.
		for _, cred := range candidates {
			if !e.tracker.IsExhausted(cred, now) {
				run.state = StateRotating
				return
			}
		}
		run.fail(ErrNoUsableCredential)
		return
	}

	// Never resume on the reset boundary itself: wait at least a second.
	wait := time.Until(resetAt) + e.config.ResetBuffer
	if wait < time.Second {
		wait = time.Second
	}

	pausesTotal.Inc()
	e.logger.Info().
		Time("resume_at", resetAt).
		Dur("wait", wait).
		Msg("All credentials exhausted, pausing until soonest reset")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	pauseStart := time.Now()
	select {
	case <-ctx.Done():
		pauseSeconds.Observe(time.Since(pauseStart).Seconds())
		run.fail(ctx.Err())
	case <-timer.C:
		pauseSeconds.Observe(time.Since(pauseStart).Seconds())
		run.state = StateRotating
	}
}
