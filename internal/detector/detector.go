package detector

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/pkg/types"
)

// Detector scans market snapshots for parity violations. A binary market's
// outcome prices should sum to 1.0; when the sum drifts further than the
// configured threshold a signal is emitted recommending the side that profits
// from reversion.
type Detector struct {
	minSpread float64
	minProfit float64
	logger    *zap.Logger
}

// Config holds detector configuration.
type Config struct {
	MinSpreadThreshold float64
	MinProfitThreshold float64
	Logger             *zap.Logger
}

// New creates a new parity detector.
func New(cfg *Config) (*Detector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MinSpreadThreshold <= 0 {
		return nil, fmt.Errorf("min spread threshold must be positive")
	}
	if cfg.MinProfitThreshold < 0 {
		return nil, fmt.Errorf("min profit threshold must be non-negative")
	}

	return &Detector{
		minSpread: cfg.MinSpreadThreshold,
		minProfit: cfg.MinProfitThreshold,
		logger:    cfg.Logger,
	}, nil
}

// Scan emits at most one signal per market. Only active markets accepting
// orders are considered, and a signal fires only when the spread strictly
// exceeds the threshold; a spread exactly at the threshold does not trigger.
// Result order follows input order and no state is mutated.
func (d *Detector) Scan(markets []types.Market) []types.Signal {
	start := time.Now()
	defer func() {
		ScanDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var signals []types.Signal

	for _, mkt := range markets {
		if !mkt.Tradable() {
			SignalsRejectedTotal.WithLabelValues("not_tradable").Inc()
			continue
		}
		if len(mkt.OutcomePrices) < 2 {
			SignalsRejectedTotal.WithLabelValues("missing_prices").Inc()
			continue
		}

		spread := mkt.Spread()
		if spread <= d.minSpread {
			SignalsRejectedTotal.WithLabelValues("below_threshold").Inc()
			continue
		}

		side := types.SideBuy
		if mkt.PriceSum() > 1.0 {
			side = types.SideSell
		}

		sig := types.Signal{
			ID:         uuid.NewString(),
			MarketID:   mkt.ID,
			Spread:     spread,
			Edge:       spread,
			Side:       side,
			YesPrice:   mkt.YesPrice(),
			NoPrice:    mkt.NoPrice(),
			DetectedAt: time.Now(),
		}
		signals = append(signals, sig)

		SignalsDetectedTotal.Inc()
		SignalSpread.Observe(spread)

		d.logger.Debug("parity-signal",
			zap.String("signal_id", sig.ID),
			zap.String("market_id", mkt.ID),
			zap.Float64("spread", spread),
			zap.String("side", string(side)))
	}

	return signals
}

// ExpectedProfit estimates the net outcome of trading a signal: the gross
// edge on the traded size, less taker fees on both legs of the bundle, less
// the slippage drag.
func ExpectedProfit(edge, size, referencePrice, feeRate, slippage float64) float64 {
	gross := edge * size
	fees := 2 * (size * referencePrice * feeRate)
	drag := size * slippage

	return gross - fees - drag
}

// Profitable reports whether a signal clears the minimum profit threshold at
// the given size, fee rate, and slippage estimate. The comparison is strict:
// an expected profit exactly at the threshold is not worth taking.
func (d *Detector) Profitable(sig types.Signal, size, feeRate, slippage float64) (float64, bool) {
	expected := ExpectedProfit(sig.Edge, size, sig.YesPrice, feeRate, slippage)
	if expected <= d.minProfit {
		SignalsRejectedTotal.WithLabelValues("below_min_profit").Inc()
		d.logger.Debug("signal-unprofitable",
			zap.String("signal_id", sig.ID),
			zap.Float64("expected_profit", expected),
			zap.Float64("min_profit", d.minProfit))
		return expected, false
	}

	return expected, true
}
