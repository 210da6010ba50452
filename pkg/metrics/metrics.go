// Package metrics exposes the Prometheus registry shared by the gallery.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination, server) to keep them next to the code that
// records them and to avoid circular dependencies.
//
// This package provides the scrape handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer used by the gallery.
// All metrics are registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - picsum_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cached", "rate_limited", "network_error" for local outcomes)
//   - picsum_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - picsum_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - picsum_lookups_total{step, result} (Counter): Single-photo lookups by step (direct, scan) and result
//
// Retry Metrics (pkg/client):
//   - picsum_retries_total{error_class} (Counter): Retry attempts by error class
//   - picsum_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - picsum_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - picsum_cache_hits_total{freshness} (Counter): Cache hits, fresh or stale
//   - picsum_cache_misses_total (Counter): Cache misses
//   - picsum_cache_size_bytes (Gauge): Bytes written to the cache
//   - picsum_304_responses_total (Counter): 304 Not Modified responses
//   - picsum_conditional_requests_total (Counter): Conditional requests sent
//   - picsum_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - picsum_rate_limit_blocks_total (Counter): Requests blocked by a cooldown
//   - picsum_rate_limit_cooldowns_total (Counter): Cooldowns started from responses
//   - picsum_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//
// Gallery Metrics (pkg/pagination):
//   - picsum_gallery_loads_total{result} (Counter): Page loads (page, end, error, discarded)
//   - picsum_gallery_load_duration_seconds (Histogram): Page load duration
//   - picsum_gallery_joined_loads_total (Counter): LoadNext calls joined to an in-flight load
//   - picsum_gallery_duplicates_dropped_total (Counter): Photos dropped as duplicates
//
// Server Metrics (internal/server):
//   - picsum_gallery_sessions (Gauge): Open gallery sessions
//   - picsum_http_requests_total{route, status} (Counter): API requests by route
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(picsum_cache_hits_total[5m])) /
//   (sum(rate(picsum_cache_hits_total[5m])) + sum(rate(picsum_cache_misses_total[5m])))
//
//   # Lookups that needed the scan fallback
//   rate(picsum_lookups_total{step="scan"}[5m])
//
//   # Gallery load error ratio
//   rate(picsum_gallery_loads_total{result="error"}[5m]) / rate(picsum_gallery_loads_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(picsum_request_duration_seconds_bucket[5m]))
