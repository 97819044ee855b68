package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks responses served from the store while the origin
	// was unreachable.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_cache_hits_total",
			Help: "Total number of responses served from the offline cache",
		},
	)

	// CacheMisses tracks offline lookups that found nothing.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_cache_misses_total",
			Help: "Total number of offline cache lookups that missed",
		},
	)

	// CacheStores tracks successful fire-and-forget store writes.
	CacheStores = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_cache_stores_total",
			Help: "Total number of responses stored in the offline cache",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "purge"
	)

	// OfflineFallbacks tracks synthesized 503 responses by kind.
	OfflineFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_fallbacks_total",
			Help: "Total number of synthesized offline responses",
		},
		[]string{"kind"}, // "api", "plain"
	)
)
