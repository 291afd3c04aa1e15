package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_cache_hits_total",
		Help: "Total number of cache hits",
	})

	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_cache_misses_total",
		Help: "Total number of cache misses",
	})

	SetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_cache_sets_total",
		Help: "Total number of cache sets",
	})

	DeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_cache_deletes_total",
		Help: "Total number of cache deletes",
	})
)
