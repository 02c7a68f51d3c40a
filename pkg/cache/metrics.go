package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by namespace
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeup_cache_hits_total",
			Help: "Total number of cache namespace hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses tracks cache misses by namespace
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeup_cache_misses_total",
			Help: "Total number of cache namespace misses",
		},
		[]string{"namespace"},
	)

	// CacheWrittenBytes tracks response bytes written by namespace,
	// overwrites included.
	CacheWrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeup_cache_written_bytes_total",
			Help: "Total response bytes written to cache namespaces",
		},
		[]string{"namespace"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeup_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "match", "put", "delete", "keys", "open", "names", "drop"
	)
)

func recordMatch(namespace string, err error) {
	switch {
	case err == nil:
		CacheHits.WithLabelValues(namespace).Inc()
	case err == ErrCacheMiss:
		CacheMisses.WithLabelValues(namespace).Inc()
	default:
		CacheErrors.WithLabelValues("match").Inc()
	}
}
