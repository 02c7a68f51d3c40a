package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeup_router_requests_total",
		Help: "Total intercepted requests by class and outcome",
	}, []string{"class", "outcome"}) // outcome: "network", "cache", "synthetic", "fallback", "passthrough"

	routerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edgeup_router_request_duration_seconds",
		Help:    "Time to resolve an intercepted request",
		Buckets: prometheus.DefBuckets,
	}, []string{"class"})

	offlineFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeup_offline_fallbacks_total",
		Help: "Total synthesized offline responses by kind",
	}, []string{"kind"}) // "home", "offline_page", "text", "image", "auth"

	lifecycleEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeup_lifecycle_events_total",
		Help: "Total router events by kind and result",
	}, []string{"event", "result"})

	namespacesEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edgeup_namespaces_evicted_total",
		Help: "Total cache namespaces dropped on activate",
	})
)

const (
	outcomeNetwork     = "network"
	outcomeCache       = "cache"
	outcomeSynthetic   = "synthetic"
	outcomeFallback    = "fallback"
	outcomePassthrough = "passthrough"
)

func recordEvent(event EventKind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	lifecycleEventsTotal.WithLabelValues(string(event), result).Inc()
}
