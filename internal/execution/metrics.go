package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FillsTotal tracks simulated fills by side.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_execution_fills_total",
			Help: "Total number of simulated fills",
		},
		[]string{"side"},
	)

	// RejectionsTotal tracks non-fill outcomes by reason.
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_execution_rejections_total",
			Help: "Total number of rejected executions by reason",
		},
		[]string{"reason"},
	)

	// NotionalTradedUSD tracks cumulative simulated notional.
	NotionalTradedUSD = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_execution_notional_usd_total",
		Help: "Cumulative notional of simulated fills in USD",
	})

	// FeesPaidUSD tracks cumulative simulated taker fees.
	FeesPaidUSD = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_execution_fees_usd_total",
		Help: "Cumulative simulated taker fees in USD",
	})

	// SlippageFraction tracks realized slippage per fill.
	SlippageFraction = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_arb_execution_slippage_fraction",
		Help:    "Realized slippage versus book midpoint per fill",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})

	// ExecutionDurationSeconds tracks wall time per simulated execution,
	// including the modeled latency pause.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_arb_execution_duration_seconds",
		Help:    "Duration of one simulated execution",
		Buckets: prometheus.DefBuckets,
	})
)
