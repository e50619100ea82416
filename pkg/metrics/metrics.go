// Package metrics provides the centralized Prometheus registry reference for
// the fetch core. All metrics are defined in their respective packages
// (ratelimit, retry, client, cache, memo) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the fetch core.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pagefetch_ratelimit_grants_total (Counter): Permits granted
//   - pagefetch_ratelimit_waits_total (Counter): Callers that had to wait for a permit
//   - pagefetch_ratelimit_wait_seconds (Histogram): Time spent waiting for a permit
//
// Retry Metrics (pkg/retry):
//   - pagefetch_retries_total{rule} (Counter): Retry attempts by rule
//   - pagefetch_retry_backoff_seconds{rule} (Histogram): Backoff duration by rule
//   - pagefetch_retry_exhausted_total{rule} (Counter): Rules that ran out of budget
//
// Fetch Metrics (pkg/client):
//   - pagefetch_fetches_total{resource, outcome} (Counter): Fetches by resource and outcome (ok, error, cache_hit)
//   - pagefetch_fetch_duration_seconds{resource} (Histogram): Fetch duration by resource
//   - pagefetch_fetch_errors_total{kind} (Counter): Terminal errors by kind
//
// Cache Metrics (pkg/cache):
//   - pagefetch_cache_hits_total (Counter): Page cache hits
//   - pagefetch_cache_misses_total (Counter): Page cache misses
//   - pagefetch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Memo Metrics (pkg/memo):
//   - pagefetch_memo_hits_total (Counter): Memoized lookups served from cache
//   - pagefetch_memo_computes_total (Counter): Underlying computations performed
//   - pagefetch_memo_failures_total (Counter): Failed computations (not cached)
//
// Example Prometheus Queries:
//
//   # Share of fetches served from cache
//   sum(rate(pagefetch_fetches_total{outcome="cache_hit"}[5m])) /
//   sum(rate(pagefetch_fetches_total[5m]))
//
//   # Retry pressure by rule
//   rate(pagefetch_retries_total[5m])
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(pagefetch_fetch_duration_seconds_bucket[5m]))
//
//   # Time lost waiting on the rate limit budget
//   rate(pagefetch_ratelimit_wait_seconds_sum[5m])
