package positions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpenPositions reports the current number of open positions.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_positions_open",
		Help: "Number of currently open positions",
	})

	// ExitsTotal counts closed positions by exit reason.
	ExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_positions_exits_total",
			Help: "Total number of closed positions",
		},
		[]string{"reason"},
	)

	// TotalPnLUSD reports realized profit and loss over the whole history.
	TotalPnLUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_positions_total_pnl_usd",
		Help: "Cumulative realized PnL across all closed positions",
	})

	// WinRate reports the fraction of closed positions with positive PnL.
	WinRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_positions_win_rate",
		Help: "Fraction of closed positions that realized a profit",
	})
)
