package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks Get calls answered from memory
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nhl_cache_hits_total",
			Help: "Total number of memoized value hits",
		},
		[]string{"name"},
	)

	// CacheMisses tracks Get calls that had to run the loader
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nhl_cache_misses_total",
			Help: "Total number of memoized value misses",
		},
		[]string{"name"},
	)

	// CacheErrors tracks loader failures
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nhl_cache_errors_total",
			Help: "Total number of memoized value load errors",
		},
		[]string{"name"},
	)
)
