package pagination

import (
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry backoff.
var (
	transientRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_transient_retries_total",
		Help: "Total number of in-place retries after transient fetch failures",
	})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_retry_backoff_seconds",
		Help:    "Backoff duration before transient retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})
)

// RetryConfig bounds the in-place retries of transient fetch failures.
type RetryConfig struct {
	// MaxAttempts is the maximum number of tries per page, including the
	// initial request.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor between retries.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// normalized fills zero fields with defaults.
func (c RetryConfig) normalized() RetryConfig {
	defaults := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
	return c
}

// backoffFor computes the jittered delay before the given retry (1-based).
// Jitter is ±20% to avoid synchronized retries.
func (c RetryConfig) backoffFor(retry int) time.Duration {
	backoff := c.InitialBackoff
	for i := 1; i < retry; i++ {
		backoff = time.Duration(float64(backoff) * c.BackoffMultiplier)
		if backoff >= c.MaxBackoff {
			backoff = c.MaxBackoff
			break
		}
	}
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
}
