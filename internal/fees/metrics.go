package fees

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CalibratorObservationsTotal counts implied fee rate samples.
	CalibratorObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_fees_calibrator_observations_total",
		Help: "Total number of implied fee rate observations",
	})

	// CalibratedFeeRate reports the current 95th percentile implied rate.
	CalibratedFeeRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_fees_calibrated_rate",
		Help: "Calibrated fee rate, the p95 of observed implied rates",
	})
)
