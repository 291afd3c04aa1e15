package allowance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GrantsTotal counts permission grants installed.
	GrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_allowance_grants_total",
		Help: "Total number of spending permissions granted",
	})

	// RevocationsTotal counts permission revocations.
	RevocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_allowance_revocations_total",
		Help: "Total number of spending permissions revoked",
	})

	// WindowResetsTotal counts 24h window rollovers.
	WindowResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_allowance_window_resets_total",
		Help: "Total number of spend window resets",
	})

	// AuthDenialsTotal counts denied authorizations by reason.
	AuthDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_allowance_denials_total",
			Help: "Total number of denied spend authorizations",
		},
		[]string{"reason"},
	)

	// SpentTodayUSD reports spend committed in the current window.
	SpentTodayUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_allowance_spent_usd",
		Help: "USDC committed against the allowance in the current window",
	})

	// DailyLimitUSD reports the active daily limit.
	DailyLimitUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_allowance_daily_limit_usd",
		Help: "Daily spending limit of the active permission",
	})
)
