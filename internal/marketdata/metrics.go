package marketdata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsFetchedTotal tracks markets returned to the engine.
	MarketsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_marketdata_markets_fetched_total",
		Help: "Total number of market snapshots fetched",
	})

	// MarketsSkippedTotal tracks listings dropped for missing outcome tokens.
	MarketsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_marketdata_markets_skipped_total",
		Help: "Total number of listed markets skipped as non-binary",
	})

	// BooksFetchedTotal tracks successful order-book fetches.
	BooksFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_marketdata_books_fetched_total",
		Help: "Total number of order books fetched",
	})

	// PricesHydratedTotal tracks outcome prices replaced by book midpoints.
	PricesHydratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_marketdata_prices_hydrated_total",
		Help: "Total number of outcome prices hydrated from book midpoints",
	})

	// FetchErrorsTotal tracks upstream failures by endpoint.
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_marketdata_fetch_errors_total",
			Help: "Total number of fetch failures by endpoint",
		},
		[]string{"endpoint"},
	)

	// FetchDurationSeconds tracks request latency by endpoint.
	FetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parity_arb_marketdata_fetch_duration_seconds",
			Help:    "Duration of upstream fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)
