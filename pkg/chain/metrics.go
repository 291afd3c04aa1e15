package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NativeBalance tracks the wallet's native token balance.
	NativeBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_chain_native_balance",
		Help: "Native token balance of the observed wallet",
	})

	// USDCBalance tracks the wallet's USDC balance.
	USDCBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_chain_usdc_balance",
		Help: "USDC balance of the observed wallet (USD)",
	})

	// BlockNumber records the latest block seen by a probe.
	BlockNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_chain_block_number",
		Help: "Latest Polygon block number seen by the connectivity probe",
	})

	// ProbesTotal counts connectivity probes.
	ProbesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_chain_probes_total",
		Help: "Total number of RPC connectivity probes",
	})

	// ProbeFailuresTotal counts failed connectivity probes.
	ProbeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_chain_probe_failures_total",
		Help: "Total number of failed RPC connectivity probes",
	})

	// UpdateErrorsTotal counts failed balance polls.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_chain_update_errors_total",
		Help: "Total number of failed balance poll attempts",
	})

	// UpdateDuration observes balance poll latency.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_arb_chain_update_duration_seconds",
		Help:    "Time taken to read wallet balances",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp records the last successful balance poll.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_chain_last_update_timestamp",
		Help: "Unix timestamp of the last successful balance poll",
	})
)
