// Package metrics provides the centralized Prometheus metrics registry for the
// collector. All metrics are defined in their respective packages (pagination,
// quota, cache) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the collector.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns an HTTP handler exposing all registered metrics, for callers
// that embed the collector in a long-running process.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// API Metrics (pkg/github):
//   - collector_api_requests_total{status} (Counter): GraphQL requests by HTTP status
//   - collector_api_request_duration_seconds (Histogram): GraphQL request latency
//   - collector_api_errors_total{class} (Counter): Fetch errors by classification
//
// Pagination Metrics (pkg/pagination):
//   - collector_pages_fetched_total (Counter): Pages successfully fetched
//   - collector_records_collected_total (Counter): Repository records appended to the result set
//   - collector_rotations_total (Counter): Credential rotations performed
//   - collector_rate_limit_hits_total (Counter): Fetches rejected by the API rate limit
//   - collector_transient_retries_total (Counter): In-place retries of transient fetch errors
//   - collector_retry_backoff_seconds (Histogram): Backoff delay before each retry
//   - collector_pauses_total (Counter): Times the engine paused for a quota reset
//   - collector_pause_seconds (Histogram): Duration of quota-reset pauses
//
// Quota Metrics (pkg/quota):
//   - collector_quota_remaining{credential} (Gauge): Last observed remaining budget per masked credential
//
// Cache Metrics (pkg/cache):
//   - collector_cache_hits_total{layer="redis"} (Counter): Page cache hits by layer
//   - collector_cache_misses_total (Counter): Page cache misses
//   - collector_cache_errors_total{operation} (Counter): Cache operation errors
//   - collector_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(collector_cache_hits_total[5m])) /
//   (sum(rate(collector_cache_hits_total[5m])) + sum(rate(collector_cache_misses_total[5m])))
//
//   # Rotation Rate
//   rate(collector_rotations_total[5m])
//
//   # Quota Headroom
//   min(collector_quota_remaining)
//
//   # P95 Pause Duration
//   histogram_quantile(0.95, rate(collector_pause_seconds_bucket[5m]))
