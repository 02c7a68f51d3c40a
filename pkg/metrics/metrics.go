// Package metrics exposes the Prometheus registry used by the offline router.
// Collectors live in their own packages (cache, client, router, precache,
// notify) and register themselves through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the router process.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered collector in the text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - edgeup_cache_hits_total{namespace} (Counter)
//   - edgeup_cache_misses_total{namespace} (Counter)
//   - edgeup_cache_written_bytes_total{namespace} (Counter)
//   - edgeup_cache_errors_total{operation} (Counter)
//
// Router Metrics (pkg/router):
//   - edgeup_router_requests_total{class, outcome} (Counter)
//   - edgeup_router_request_duration_seconds{class} (Histogram)
//   - edgeup_offline_fallbacks_total{kind} (Counter)
//   - edgeup_lifecycle_events_total{event, result} (Counter)
//   - edgeup_namespaces_evicted_total (Counter)
//
// Origin Metrics (pkg/client):
//   - edgeup_origin_requests_total{status} (Counter)
//   - edgeup_origin_request_duration_seconds (Histogram)
//   - edgeup_origin_errors_total{class} (Counter)
//   - edgeup_origin_retries_total (Counter)
//
// Pre-cache Metrics (pkg/precache):
//   - edgeup_precache_urls_total{result} (Counter)
//
// Notification Metrics (pkg/notify):
//   - edgeup_notifications_total{kind} (Counter)
//   - edgeup_connected_clients (Gauge)
//
// Example Prometheus Queries:
//
//   # Offline share of page traffic
//   sum(rate(edgeup_router_requests_total{class="page",outcome!="network"}[5m])) /
//   sum(rate(edgeup_router_requests_total{class="page"}[5m]))
//
//   # Static cache hit rate
//   rate(edgeup_cache_hits_total{namespace=~".*-static-.*"}[5m])
