package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngineState is a state set: the active state carries 1, the rest 0.
	EngineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "parity_arb_engine_state",
		Help: "Current engine state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	// StateTransitionsTotal counts transitions between engine states.
	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parity_arb_engine_state_transitions_total",
		Help: "Total number of engine state transitions",
	}, []string{"from", "to"})

	// CyclesTotal counts trading cycles that passed the safety gate.
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_engine_cycles_total",
		Help: "Total number of trading cycles run",
	})

	// CyclesSkippedTotal counts cycles the safety gate refused.
	CyclesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parity_arb_engine_cycles_skipped_total",
		Help: "Total number of cycles skipped by the safety gate",
	}, []string{"reason"})

	// CycleDurationSeconds tracks wall time per cycle including skips.
	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_arb_engine_cycle_duration_seconds",
		Help:    "Time taken to run one engine cycle",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// FetchFailuresTotal counts market-fetch failures.
	FetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_engine_fetch_failures_total",
		Help: "Total number of market data fetch failures",
	})

	// ConsecutiveFailures tracks the current failure streak.
	ConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_engine_consecutive_failures",
		Help: "Current number of consecutive market data fetch failures",
	})

	// SignalsFilteredTotal counts signals dropped before execution.
	SignalsFilteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parity_arb_engine_signals_filtered_total",
		Help: "Total number of signals dropped between detection and execution",
	}, []string{"reason"})

	// BundlesExecutedTotal counts executed signal bundles.
	BundlesExecutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_engine_bundles_executed_total",
		Help: "Total number of signal bundles sent to the execution simulator",
	})

	// MarketsTracked is the size of the last published market snapshot.
	MarketsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_engine_markets_tracked",
		Help: "Number of markets in the last published snapshot",
	})

	// SignalsLastCycle is the size of the last published signal batch.
	SignalsLastCycle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_engine_signals_last_cycle",
		Help: "Number of signals detected in the most recent cycle",
	})
)
