// Package metrics provides centralized Prometheus metrics registry for the tap.
// All metrics are defined in their respective packages (client, ratelimit,
// discovery, pagination, stream, sink, cache) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics
// and the HTTP handler serving them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the tap.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - nhl_rate_limit_waits_total (Counter): Requests that had to wait for the pacer
//   - nhl_rate_limit_wait_seconds (Histogram): Time spent waiting for the pacer
//
// Request Metrics (pkg/client):
//   - nhl_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - nhl_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - nhl_errors_total{class} (Counter): Errors by class (client, server, rate_limit, connect, read)
//
// Retry Metrics (pkg/client):
//   - nhl_retries_total{error_class} (Counter): Retry attempts by error class
//   - nhl_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - nhl_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Discovery Metrics (pkg/discovery):
//   - nhl_discovery_pages_total{stream} (Counter): Summary pages fetched
//   - nhl_discovered_players{stream} (Gauge): Distinct player ids found by the last discovery
//   - nhl_discovery_duration_seconds{stream} (Histogram): Wall time of a full discovery
//
// Pagination Metrics (pkg/pagination):
//   - nhl_pages_total{scheme} (Counter): Pages fetched by pagination scheme (cursor, offset)
//   - nhl_pagination_repeated_cursor_total (Counter): Cursor loops stopped on a repeated token
//
// Stream Metrics (pkg/stream):
//   - nhl_records_total{stream} (Counter): Records extracted
//   - nhl_partitions_planned_total{stream, source} (Counter): Partitions by id source (config, discovery)
//   - nhl_skipped_records_total{stream} (Counter): Extracted values dropped as non-objects
//
// Cache Metrics (pkg/cache):
//   - nhl_cache_hits_total{name} (Counter): Memoized value reads served from memory
//   - nhl_cache_misses_total{name} (Counter): Memoized value loads
//   - nhl_cache_errors_total{name} (Counter): Failed loads
//
// Sink Metrics (pkg/sink):
//   - nhl_sink_writes_total{sink, type} (Counter): Messages written by sink kind and message type
//   - nhl_sink_errors_total{sink} (Counter): Sink write errors
//
// Example Prometheus Queries:
//
//   # Retry Rate
//   sum(rate(nhl_retries_total[5m])) by (error_class)
//
//   # Records per Second
//   sum(rate(nhl_records_total[5m])) by (stream)
//
//   # Request Error Rate
//   rate(nhl_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(nhl_request_duration_seconds_bucket[5m]))
//
//   # Pacer Pressure
//   rate(nhl_rate_limit_wait_seconds_sum[5m])
