package execution

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/allowance"
	"github.com/oddslab/parity-arb/internal/fees"
	"github.com/oddslab/parity-arb/pkg/types"
)

// NormalSource supplies standard normal draws. *rand.Rand from math/rand/v2
// satisfies it; tests substitute a fixed sequence to pin the outcome.
type NormalSource interface {
	NormFloat64() float64
}

// Request describes one simulated order against a fetched book.
type Request struct {
	MarketID string
	TokenID  string
	Side     types.Side
	Size     float64
	Book     *types.OrderBook
	// FeeBps is the market's own taker fee. Zero falls back to the
	// configured default rate.
	FeeBps int
}

// Simulator produces simulated fills. Each call walks the book for a
// volume-weighted price, applies a latency and adverse-selection
// perturbation, limits the fill, prices fees, and charges the spend
// ledger. Rejections (insufficient liquidity, no fill, allowance denied)
// leave every piece of shared state untouched; side effects happen only
// after the ledger commit succeeds.
type Simulator struct {
	latencyMean time.Duration
	adverseStd  float64
	fillMean    float64
	fillStd     float64
	feeModel    fees.Model
	ledger      *allowance.Ledger
	calibrator  *fees.Calibrator
	logger      *zap.Logger
	now         func() time.Time

	mu  sync.Mutex
	rng NormalSource
}

// Config holds simulator configuration.
type Config struct {
	LatencyMean         time.Duration
	AdverseSelectionStd float64
	FillRatioMean       float64
	FillRatioStd        float64
	FeeModel            fees.Model
	Ledger              *allowance.Ledger
	Calibrator          *fees.Calibrator // optional
	Rand                NormalSource     // optional, defaults to a PCG source
	Logger              *zap.Logger
}

// New creates a fill simulator.
func New(cfg *Config) (*Simulator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.LatencyMean < 0 {
		return nil, fmt.Errorf("latency mean cannot be negative, got %s", cfg.LatencyMean)
	}
	if cfg.AdverseSelectionStd < 0 {
		return nil, fmt.Errorf("adverse selection std cannot be negative, got %f", cfg.AdverseSelectionStd)
	}
	if cfg.FillRatioMean < 0 || cfg.FillRatioMean > 1 {
		return nil, fmt.Errorf("fill ratio mean must be in [0, 1], got %f", cfg.FillRatioMean)
	}
	if cfg.FillRatioStd < 0 {
		return nil, fmt.Errorf("fill ratio std cannot be negative, got %f", cfg.FillRatioStd)
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Simulator{
		latencyMean: cfg.LatencyMean,
		adverseStd:  cfg.AdverseSelectionStd,
		fillMean:    cfg.FillRatioMean,
		fillStd:     cfg.FillRatioStd,
		feeModel:    cfg.FeeModel,
		ledger:      cfg.Ledger,
		calibrator:  cfg.Calibrator,
		logger:      cfg.Logger,
		now:         time.Now,
		rng:         rng,
	}, nil
}

// Execute runs one simulated fill. It returns ErrInsufficientLiquidity when
// the book cannot cover the requested size, ErrNoFill when the fill model
// produces nothing, and a PermissionError when the ledger refuses the spend.
// All three are ordinary outcomes, not faults.
func (s *Simulator) Execute(ctx context.Context, req Request) (*types.ExecutionResult, error) {
	if req.Book == nil {
		return nil, fmt.Errorf("order book cannot be nil")
	}

	start := s.now()
	defer func() {
		ExecutionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	theoretical, err := req.Book.ExecutionPrice(req.Size, req.Side)
	if err != nil {
		RejectionsTotal.WithLabelValues("insufficient_liquidity").Inc()
		s.logger.Debug("execution-rejected",
			zap.String("token_id", req.TokenID),
			zap.Float64("requested_size", req.Size),
			zap.Float64("side_depth", req.Book.Depth(req.Side)),
			zap.String("reason", "insufficient_liquidity"))
		return nil, err
	}

	// The latency pause stands in for the network and chain round trip
	// during which the adverse move happens. It is part of the price model
	// and runs at full length even in simulation.
	if err := s.waitLatency(ctx); err != nil {
		return nil, err
	}

	adverseMove, fillRatio := s.draw()
	execPrice := theoretical * (1 + adverseMove)

	filled := req.Size * fillRatio
	if depth := req.Book.Depth(req.Side); filled > depth {
		filled = depth
	}
	if filled <= 0 {
		RejectionsTotal.WithLabelValues("no_fill").Inc()
		s.logger.Debug("execution-rejected",
			zap.String("token_id", req.TokenID),
			zap.Float64("fill_ratio", fillRatio),
			zap.String("reason", "no_fill"))
		return nil, types.ErrNoFill
	}

	mid, twoSided := req.Book.Midpoint()
	if !twoSided {
		mid = execPrice
	}
	slippage := math.Abs(execPrice-mid) / mid

	notional := execPrice * filled
	feeRate := s.feeModel.RateFor(req.FeeBps)
	fee := notional * feeRate
	totalCost := notional + fee

	if err := s.ledger.Authorize(totalCost); err != nil {
		RejectionsTotal.WithLabelValues("allowance_denied").Inc()
		s.logger.Debug("execution-rejected",
			zap.String("token_id", req.TokenID),
			zap.Float64("total_cost", totalCost),
			zap.String("reason", "allowance_denied"),
			zap.Error(err))
		return nil, err
	}
	if err := s.ledger.Commit(totalCost); err != nil {
		// A racing spender consumed the headroom between the two calls.
		RejectionsTotal.WithLabelValues("allowance_denied").Inc()
		return nil, err
	}

	if s.calibrator != nil && twoSided {
		s.calibrator.Observe(execPrice, mid)
	}

	result := &types.ExecutionResult{
		ID:             uuid.NewString(),
		TokenID:        req.TokenID,
		Side:           req.Side,
		RequestedSize:  req.Size,
		FilledSize:     filled,
		ExecutionPrice: execPrice,
		FeePaid:        fee,
		Slippage:       slippage,
		TotalCost:      totalCost,
		Latency:        s.latencyMean,
		ExecutedAt:     s.now(),
		Success:        true,
	}

	FillsTotal.WithLabelValues(string(req.Side)).Inc()
	NotionalTradedUSD.Add(notional)
	FeesPaidUSD.Add(fee)
	SlippageFraction.Observe(slippage)

	s.logger.Info("fill-simulated",
		zap.String("execution_id", result.ID),
		zap.String("market_id", req.MarketID),
		zap.String("token_id", req.TokenID),
		zap.String("side", string(req.Side)),
		zap.Float64("requested_size", req.Size),
		zap.Float64("filled_size", filled),
		zap.Float64("execution_price", execPrice),
		zap.Float64("fee_paid", fee),
		zap.Float64("slippage", slippage),
		zap.Float64("total_cost", totalCost),
		zap.Duration("latency", s.latencyMean))

	return result, nil
}

// waitLatency blocks for the configured mean delay, honoring cancellation.
func (s *Simulator) waitLatency(ctx context.Context) error {
	if s.latencyMean <= 0 {
		return nil
	}

	timer := time.NewTimer(s.latencyMean)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// draw produces the adverse-selection move and the clamped fill ratio. A
// zero standard deviation skips its draw entirely so fixed-sequence test
// sources stay aligned with the parameters under test.
func (s *Simulator) draw() (adverseMove, fillRatio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adverseStd > 0 {
		adverseMove = s.rng.NormFloat64() * s.adverseStd
	}

	fillRatio = s.fillMean
	if s.fillStd > 0 {
		fillRatio += s.rng.NormFloat64() * s.fillStd
	}
	fillRatio = clamp01(fillRatio)

	return adverseMove, fillRatio
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}

	return v
}
