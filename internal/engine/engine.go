// Package engine drives the agent's decision loop. Every cycle passes a
// safety gate keyed on data freshness and fetch-failure streaks before any
// trading work runs; the cycle itself refreshes market data, evaluates
// position exits, scans for parity signals and hands actionable ones to the
// execution simulator. The engine also owns the market and signal snapshots
// served by the control plane.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/allowance"
	"github.com/oddslab/parity-arb/internal/detector"
	"github.com/oddslab/parity-arb/internal/execution"
	"github.com/oddslab/parity-arb/internal/fees"
	"github.com/oddslab/parity-arb/internal/positions"
	"github.com/oddslab/parity-arb/internal/storage"
	"github.com/oddslab/parity-arb/pkg/types"
)

// State identifies the engine's safety condition. Exactly one state is
// active at a time; StateStopped is terminal.
type State string

const (
	StateRunning            State = "RUNNING"
	StateSafeMode           State = "SAFE_MODE"
	StateDataDelaySuspended State = "DATA_DELAY_SUSPENDED"
	StateStopped            State = "STOPPED"
)

var engineStates = []State{StateRunning, StateSafeMode, StateDataDelaySuspended, StateStopped}

// Status is a point-in-time view of the engine for the control plane.
type Status struct {
	State               State          `json:"state"`
	Reason              string         `json:"reason,omitempty"`
	SafeModeUntil       time.Time      `json:"safe_mode_until"`
	ObservedDelayMS     int64          `json:"observed_delay_ms"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastFetchAt         time.Time      `json:"last_fetch_at"`
	Cycles              uint64         `json:"cycles"`
	Mode                allowance.Mode `json:"strategy_mode"`
	StartedAt           time.Time      `json:"started_at"`
}

// MarketSource supplies market snapshots and order books for the cycle.
// *marketdata.Client satisfies it.
type MarketSource interface {
	FetchMarkets(ctx context.Context) ([]types.Market, error)
	HydrateMarkets(ctx context.Context, markets []types.Market) int
	FetchOrderBook(ctx context.Context, tokenID string) (*types.OrderBook, error)
}

// FillSimulator produces simulated fills for bundle legs. *execution.Simulator
// satisfies it.
type FillSimulator interface {
	Execute(ctx context.Context, req execution.Request) (*types.ExecutionResult, error)
}

// gateDecision is the outcome of one safety-gate evaluation.
type gateDecision int

const (
	gateProceed gateDecision = iota
	gateSkip
	// gateRefresh allows a data refetch but no trading, so a staleness
	// suspension can clear once fresh prices arrive.
	gateRefresh
)

// Engine runs the trading loop. All mutable state is guarded by mu because
// the control plane reads concurrently with a cycle in flight; readers get
// copies, never interior references.
type Engine struct {
	markets    MarketSource
	detector   *detector.Detector
	simulator  FillSimulator
	ledger     *allowance.Ledger
	strategy   allowance.Strategy
	positions  *positions.Manager
	store      storage.Storage
	calibrator *fees.Calibrator
	feeModel   fees.Model
	logger     *zap.Logger
	now        func() time.Time

	tradeSize    float64
	pollInterval time.Duration
	grantWait    time.Duration
	maxDataDelay time.Duration
	maxFailures  int
	cooldown     time.Duration

	mu            sync.RWMutex
	state         State
	reason        string
	safeModeUntil time.Time
	observedDelay time.Duration
	failures      int
	lastFetch     time.Time
	cycles        uint64
	mode          allowance.Mode
	startedAt     time.Time
	snapshot      []types.Market
	snapshotAt    time.Time
	signals       []types.Signal
}

// Config holds engine configuration.
type Config struct {
	Markets    MarketSource
	Detector   *detector.Detector
	Simulator  FillSimulator
	Ledger     *allowance.Ledger
	Strategy   allowance.Strategy
	Positions  *positions.Manager
	Storage    storage.Storage  // optional, exits are logged either way
	Calibrator *fees.Calibrator // optional, default rate is used when nil
	FeeModel   fees.Model

	// TradeSize is the per-leg size in shares for every bundle.
	TradeSize              float64
	PollInterval           time.Duration
	MaxDataDelay           time.Duration
	MaxConsecutiveFailures int
	SafeModeCooldown       time.Duration
	// GrantWait is the idle pause while no spending permission is
	// installed. Defaults to 2s.
	GrantWait time.Duration

	Logger *zap.Logger
}

const defaultGrantWait = 2 * time.Second

// New creates an engine in the running state.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Markets == nil {
		return nil, fmt.Errorf("market source cannot be nil")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if cfg.Simulator == nil {
		return nil, fmt.Errorf("simulator cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Positions == nil {
		return nil, fmt.Errorf("position manager cannot be nil")
	}
	if cfg.TradeSize <= 0 {
		return nil, fmt.Errorf("trade size must be positive, got %f", cfg.TradeSize)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.MaxDataDelay <= 0 {
		return nil, fmt.Errorf("max data delay must be positive, got %s", cfg.MaxDataDelay)
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		return nil, fmt.Errorf("max consecutive failures must be positive, got %d", cfg.MaxConsecutiveFailures)
	}
	if cfg.SafeModeCooldown <= 0 {
		return nil, fmt.Errorf("safe mode cooldown must be positive, got %s", cfg.SafeModeCooldown)
	}

	grantWait := cfg.GrantWait
	if grantWait <= 0 {
		grantWait = defaultGrantWait
	}

	e := &Engine{
		markets:      cfg.Markets,
		detector:     cfg.Detector,
		simulator:    cfg.Simulator,
		ledger:       cfg.Ledger,
		strategy:     cfg.Strategy,
		positions:    cfg.Positions,
		store:        cfg.Storage,
		calibrator:   cfg.Calibrator,
		feeModel:     cfg.FeeModel,
		logger:       cfg.Logger,
		now:          time.Now,
		tradeSize:    cfg.TradeSize,
		pollInterval: cfg.PollInterval,
		grantWait:    grantWait,
		maxDataDelay: cfg.MaxDataDelay,
		maxFailures:  cfg.MaxConsecutiveFailures,
		cooldown:     cfg.SafeModeCooldown,
		state:        StateRunning,
		mode:         allowance.ModeConservative,
	}
	setStateGauge(StateRunning)

	return e, nil
}

// Run drives cycles until the context is cancelled or the engine stops.
// While no spending permission is installed the loop idles without counting
// failures; once a previously valid grant is revoked or expires the engine
// moves to StateStopped and Run returns nil. The control-plane surface stays
// up either way; stopping the loop does not tear down readers.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.startedAt = e.now()
	e.mu.Unlock()

	e.logger.Info("engine-started",
		zap.Duration("poll_interval", e.pollInterval),
		zap.Duration("max_data_delay", e.maxDataDelay),
		zap.Int("max_consecutive_failures", e.maxFailures),
		zap.Duration("safe_mode_cooldown", e.cooldown),
		zap.Float64("trade_size", e.tradeSize))

	for {
		grant := e.ledger.Status()
		switch {
		case grant.PermissionID == "":
			e.logger.Debug("awaiting-permission-grant")
			if err := e.sleep(ctx, e.grantWait); err != nil {
				return err
			}
			continue
		case !grant.Active:
			reason := "permission expired"
			if grant.Revoked {
				reason = "permission revoked"
			}
			e.stop(reason)
			return nil
		}

		e.runCycle(ctx)

		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return err
		}
	}
}

// runCycle evaluates the safety gate and, when it allows, runs one full
// decision cycle: refresh data, close positions that hit an exit condition,
// scan for signals and execute the actionable ones.
func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		CycleDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	switch e.gate() {
	case gateSkip:
		return
	case gateRefresh:
		e.refreshData(ctx)
		return
	}

	e.mu.Lock()
	e.cycles++
	cycle := e.cycles
	e.mu.Unlock()
	CyclesTotal.Inc()

	markets, err := e.fetchAndHydrate(ctx)
	if err != nil {
		return
	}

	// Exits run before new entries so freed allowance and token slots are
	// available to this cycle's signals.
	exits := e.positions.CheckExits(markets)
	for _, rec := range exits {
		e.forwardExit(ctx, rec)
	}

	signals := e.detector.Scan(markets)
	e.publishSignals(signals)

	grant := e.ledger.Status()
	mode := e.strategy.ModeFor(grant.Remaining, grant.DailyLimit)
	minEdge := e.strategy.MinEdge(mode)
	e.setMode(mode)

	byID := make(map[string]types.Market, len(markets))
	for _, mkt := range markets {
		byID[mkt.ID] = mkt
	}

	executed := 0
	for _, sig := range signals {
		if sig.Edge < minEdge {
			SignalsFilteredTotal.WithLabelValues("below_mode_edge").Inc()
			e.logger.Debug("signal-below-mode-edge",
				zap.String("signal_id", sig.ID),
				zap.Float64("edge", sig.Edge),
				zap.Float64("min_edge", minEdge),
				zap.String("mode", string(mode)))
			continue
		}

		mkt, ok := byID[sig.MarketID]
		if !ok {
			continue
		}

		slippage := fees.DefaultCalibratedRate
		if e.calibrator != nil {
			slippage = e.calibrator.CalibratedRate()
		}

		feeRate := e.feeModel.RateFor(mkt.TakerFeeBps)
		expected, ok := e.detector.Profitable(sig, e.tradeSize, feeRate, slippage)
		if !ok {
			continue
		}

		e.executeBundle(ctx, mkt, sig, expected)
		executed++

		if ctx.Err() != nil {
			return
		}
	}

	e.logger.Debug("cycle-complete",
		zap.Uint64("cycle", cycle),
		zap.Int("markets", len(markets)),
		zap.Int("exits", len(exits)),
		zap.Int("signals", len(signals)),
		zap.Int("bundles", executed),
		zap.String("mode", string(mode)),
		zap.Duration("duration", time.Since(start)))
}

// gate applies the safety checks in order: safe-mode cooldown, data
// staleness, failure streak. It is driven purely by time and the failure
// counter, never by trading outcomes.
func (e *Engine) gate() gateDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()

	if e.state == StateStopped {
		CyclesSkippedTotal.WithLabelValues("stopped").Inc()
		return gateSkip
	}

	if e.state == StateSafeMode {
		if now.Before(e.safeModeUntil) {
			CyclesSkippedTotal.WithLabelValues("safe_mode").Inc()
			return gateSkip
		}

		e.logger.Info("safe-mode-cooldown-elapsed",
			zap.Int("failures_cleared", e.failures))
		e.safeModeUntil = time.Time{}
		e.failures = 0
		ConsecutiveFailures.Set(0)
		e.transitionLocked(StateRunning, "")
	}

	if !e.lastFetch.IsZero() {
		if age := now.Sub(e.lastFetch); age > e.maxDataDelay {
			e.observedDelay = age
			if e.state != StateDataDelaySuspended {
				e.logger.Warn("data-delay-suspension",
					zap.Duration("observed_delay", age),
					zap.Duration("max_data_delay", e.maxDataDelay))
				e.transitionLocked(StateDataDelaySuspended, "stale market data")
			}

			// Refresh attempts draw on the same failure budget, so a dead
			// data source still backs off into safe mode.
			if e.failures >= e.maxFailures {
				e.enterSafeModeLocked(now)
				return gateSkip
			}

			CyclesSkippedTotal.WithLabelValues("data_delay").Inc()
			return gateRefresh
		}
	}

	if e.state == StateDataDelaySuspended {
		e.logger.Info("data-delay-recovered",
			zap.Duration("observed_delay", e.observedDelay))
		e.observedDelay = 0
		e.transitionLocked(StateRunning, "")
	}

	if e.failures >= e.maxFailures {
		e.enterSafeModeLocked(now)
		return gateSkip
	}

	return gateProceed
}

// enterSafeModeLocked starts a cooldown. Callers must hold the write lock.
func (e *Engine) enterSafeModeLocked(now time.Time) {
	until := now.Add(e.cooldown)
	reason := fmt.Sprintf("%d consecutive fetch failures", e.failures)

	e.safeModeUntil = until
	e.transitionLocked(StateSafeMode, reason)

	e.logger.Warn("entering-safe-mode",
		zap.String("reason", reason),
		zap.Time("until", until))

	CyclesSkippedTotal.WithLabelValues("failure_streak").Inc()
}

// refreshData refetches market data without any trading work so that a
// staleness suspension can clear.
func (e *Engine) refreshData(ctx context.Context) {
	markets, err := e.fetchAndHydrate(ctx)
	if err != nil {
		return
	}

	e.logger.Info("suspended-data-refreshed",
		zap.Int("markets", len(markets)))
}

// fetchAndHydrate pulls the market list, hydrates prices from order books
// and publishes the snapshot. Fetch failures feed the consecutive-failure
// counter; successes reset it and stamp the fetch time.
func (e *Engine) fetchAndHydrate(ctx context.Context) ([]types.Market, error) {
	markets, err := e.markets.FetchMarkets(ctx)
	if err != nil {
		e.recordFetchFailure(err)
		return nil, err
	}
	e.recordFetchSuccess()

	e.markets.HydrateMarkets(ctx, markets)
	e.publishMarkets(markets)

	return markets, nil
}

func (e *Engine) recordFetchFailure(err error) {
	e.mu.Lock()
	e.failures++
	streak := e.failures
	e.mu.Unlock()

	FetchFailuresTotal.Inc()
	ConsecutiveFailures.Set(float64(streak))

	e.logger.Warn("market-fetch-failed",
		zap.Int("consecutive_failures", streak),
		zap.Error(err))
}

func (e *Engine) recordFetchSuccess() {
	e.mu.Lock()
	e.failures = 0
	e.lastFetch = e.now()
	e.mu.Unlock()

	ConsecutiveFailures.Set(0)
}

// forwardExit hands one closed position to the storage sink. Sink failures
// are logged and dropped; persistence is observability, not bookkeeping.
func (e *Engine) forwardExit(ctx context.Context, rec types.ExitRecord) {
	if e.store == nil {
		return
	}

	if err := e.store.SaveExit(ctx, rec); err != nil {
		e.logger.Warn("exit-store-failed",
			zap.String("token_id", rec.Position.TokenID),
			zap.String("reason", string(rec.Reason)),
			zap.Error(err))
	}
}

// executeBundle runs one leg per market token on the signal's side. Legs
// fail independently: a book fetch error or a simulator rejection skips that
// leg only, and neither feeds the fetch-failure streak.
func (e *Engine) executeBundle(ctx context.Context, mkt types.Market, sig types.Signal, expected float64) {
	e.logger.Info("signal-actionable",
		zap.String("signal_id", sig.ID),
		zap.String("market_id", sig.MarketID),
		zap.String("side", string(sig.Side)),
		zap.Float64("edge", sig.Edge),
		zap.Float64("expected_profit", expected))

	for _, tokenID := range mkt.TokenIDs {
		book, err := e.markets.FetchOrderBook(ctx, tokenID)
		if err != nil {
			e.logger.Warn("bundle-book-fetch-failed",
				zap.String("market_id", mkt.ID),
				zap.String("token_id", tokenID),
				zap.Error(err))
			continue
		}

		result, err := e.simulator.Execute(ctx, execution.Request{
			MarketID: mkt.ID,
			TokenID:  tokenID,
			Side:     sig.Side,
			Size:     e.tradeSize,
			Book:     book,
			FeeBps:   mkt.TakerFeeBps,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			var permErr *types.PermissionError
			if errors.As(err, &permErr) {
				e.logger.Warn("bundle-leg-denied",
					zap.String("token_id", tokenID),
					zap.String("reason", string(permErr.Reason)),
					zap.Error(err))
			} else {
				e.logger.Debug("bundle-leg-rejected",
					zap.String("token_id", tokenID),
					zap.Error(err))
			}
			continue
		}

		e.positions.Open(types.Position{
			MarketID:    mkt.ID,
			TokenID:     tokenID,
			Side:        result.Side,
			Size:        result.FilledSize,
			EntryPrice:  result.ExecutionPrice,
			EntryTime:   result.ExecutedAt,
			EntrySpread: sig.Spread,
		})
	}

	BundlesExecutedTotal.Inc()
}

// stop moves the engine to its terminal state.
func (e *Engine) stop(reason string) {
	e.mu.Lock()
	e.transitionLocked(StateStopped, reason)
	e.mu.Unlock()

	e.logger.Warn("engine-stopped", zap.String("reason", reason))
}

// transitionLocked switches states and keeps the state gauge current.
// Callers must hold the write lock.
func (e *Engine) transitionLocked(next State, reason string) {
	if e.state == next {
		e.reason = reason
		return
	}

	prev := e.state
	e.state = next
	e.reason = reason

	StateTransitionsTotal.WithLabelValues(string(prev), string(next)).Inc()
	setStateGauge(next)
}

func setStateGauge(active State) {
	for _, s := range engineStates {
		v := 0.0
		if s == active {
			v = 1.0
		}
		EngineState.WithLabelValues(string(s)).Set(v)
	}
}

func (e *Engine) publishMarkets(markets []types.Market) {
	snap := make([]types.Market, len(markets))
	copy(snap, markets)

	e.mu.Lock()
	e.snapshot = snap
	e.snapshotAt = e.now()
	e.mu.Unlock()

	MarketsTracked.Set(float64(len(markets)))
}

func (e *Engine) publishSignals(signals []types.Signal) {
	batch := make([]types.Signal, len(signals))
	copy(batch, signals)

	e.mu.Lock()
	e.signals = batch
	e.mu.Unlock()

	SignalsLastCycle.Set(float64(len(signals)))
}

func (e *Engine) setMode(mode allowance.Mode) {
	e.mu.Lock()
	e.mode = mode
	e.mu.Unlock()
}

// sleep pauses between cycles, honoring cancellation.
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Status{
		State:               e.state,
		Reason:              e.reason,
		SafeModeUntil:       e.safeModeUntil,
		ObservedDelayMS:     e.observedDelay.Milliseconds(),
		ConsecutiveFailures: e.failures,
		LastFetchAt:         e.lastFetch,
		Cycles:              e.cycles,
		Mode:                e.mode,
		StartedAt:           e.startedAt,
	}
}

// Markets returns a copy of the last published market snapshot and the time
// it was taken.
func (e *Engine) Markets() ([]types.Market, time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.Market, len(e.snapshot))
	copy(out, e.snapshot)

	return out, e.snapshotAt
}

// Signals returns a copy of the most recent signal batch.
func (e *Engine) Signals() []types.Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.Signal, len(e.signals))
	copy(out, e.signals)

	return out
}
