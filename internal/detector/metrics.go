package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsDetectedTotal tracks parity signals emitted.
	SignalsDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_detector_signals_total",
		Help: "Total number of parity signals detected",
	})

	// SignalsRejectedTotal tracks markets that produced no signal, by reason.
	SignalsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_detector_rejected_total",
			Help: "Total number of markets rejected during scanning",
		},
		[]string{"reason"},
	)

	// SignalSpread tracks the spread distribution of emitted signals.
	SignalSpread = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_arb_detector_signal_spread",
		Help:    "Spread of emitted parity signals",
		Buckets: []float64{0.005, 0.01, 0.02, 0.03, 0.05, 0.08, 0.12, 0.20, 0.35, 0.50},
	})

	// ScanDurationSeconds tracks the duration of one full market scan.
	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_arb_detector_scan_duration_seconds",
		Help:    "Duration of one parity scan over all markets",
		Buckets: prometheus.DefBuckets,
	})
)
