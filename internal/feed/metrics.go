package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks whether the feed connection is up.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_feed_active_connections",
		Help: "Number of active feed websocket connections",
	})

	// ReconnectAttemptsTotal counts reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_feed_reconnect_attempts_total",
		Help: "Total number of feed reconnection attempts",
	})

	// ReconnectFailuresTotal counts failed reconnection attempts.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_arb_feed_reconnect_failures_total",
		Help: "Total number of failed feed reconnection attempts",
	})

	// EventsReceivedTotal counts decoded feed events by type.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_feed_events_received_total",
			Help: "Total number of feed events received",
		},
		[]string{"event_type"},
	)

	// EventsDroppedTotal counts events dropped before delivery.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parity_arb_feed_events_dropped_total",
			Help: "Total number of feed events dropped",
		},
		[]string{"reason"},
	)

	// SubscriptionCount tracks subscribed token ids.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_feed_subscriptions",
		Help: "Number of token ids subscribed on the market channel",
	})

	// CachedPrices tracks distinct tokens with a cached price.
	CachedPrices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_arb_feed_cached_prices",
		Help: "Number of tokens with a cached last price",
	})

	// ConnectionDuration observes connection lifetime at disconnect.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_arb_feed_connection_duration_seconds",
		Help:    "Duration of feed connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)
