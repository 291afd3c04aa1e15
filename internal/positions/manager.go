package positions

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/fees"
	"github.com/oddslab/parity-arb/pkg/types"
)

// Manager owns the set of open positions and their append-only exit history.
// At most one position is open per instrument token; opening a second one for
// the same token replaces the first. Exit evaluation runs once per cycle
// against the latest market snapshots.
type Manager struct {
	logger   *zap.Logger
	now      func() time.Time
	feeModel fees.Model

	profitTarget float64
	stopLoss     float64
	maxHold      time.Duration

	mu      sync.RWMutex
	open    map[string]types.Position
	history []types.ExitRecord
}

// Config holds position manager configuration.
type Config struct {
	ProfitTargetSpread float64
	StopLossSpread     float64
	MaxHold            time.Duration
	FeeModel           fees.Model
	Logger             *zap.Logger
}

// New creates a position manager with no open positions.
func New(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.ProfitTargetSpread <= 0 {
		return nil, fmt.Errorf("profit target spread must be positive")
	}
	if cfg.StopLossSpread <= 0 {
		return nil, fmt.Errorf("stop loss spread must be positive")
	}
	if cfg.MaxHold <= 0 {
		return nil, fmt.Errorf("max hold must be positive")
	}

	return &Manager{
		logger:       cfg.Logger,
		now:          time.Now,
		feeModel:     cfg.FeeModel,
		profitTarget: cfg.ProfitTargetSpread,
		stopLoss:     cfg.StopLossSpread,
		maxHold:      cfg.MaxHold,
		open:         make(map[string]types.Position),
	}, nil
}

// Open records a new position. An existing position on the same token is
// replaced, which is the documented reopen policy rather than an error.
func (m *Manager) Open(pos types.Position) {
	m.mu.Lock()
	prev, replaced := m.open[pos.TokenID]
	m.open[pos.TokenID] = pos
	openCount := len(m.open)
	m.mu.Unlock()

	if replaced {
		m.logger.Warn("position-replaced",
			zap.String("token_id", pos.TokenID),
			zap.Float64("previous_size", prev.Size),
			zap.Float64("previous_entry_price", prev.EntryPrice))
	}

	m.logger.Info("position-opened",
		zap.String("market_id", pos.MarketID),
		zap.String("token_id", pos.TokenID),
		zap.String("side", string(pos.Side)),
		zap.Float64("size", pos.Size),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("entry_spread", pos.EntrySpread))

	OpenPositions.Set(float64(openCount))
}

// CheckExits evaluates every open position against the given market
// snapshots and closes those matching an exit condition. For each position
// the conditions are tested in priority order: mean reversion, stop loss,
// timeout. The first match wins. Positions whose market is absent from the
// snapshot set, or whose token cannot be priced, are left open.
func (m *Manager) CheckExits(markets []types.Market) []types.ExitRecord {
	byID := make(map[string]types.Market, len(markets))
	for _, mkt := range markets {
		byID[mkt.ID] = mkt
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var closed []types.ExitRecord

	for tokenID, pos := range m.open {
		mkt, ok := byID[pos.MarketID]
		if !ok {
			continue
		}

		spread := mkt.Spread()

		var reason types.ExitReason
		switch {
		case spread < m.profitTarget:
			reason = types.ExitMeanReversion
		case spread > pos.EntrySpread+m.stopLoss:
			reason = types.ExitStopLoss
		case now.Sub(pos.EntryTime) > m.maxHold:
			reason = types.ExitTimeout
		default:
			continue
		}

		exitPrice, ok := mkt.PriceForToken(tokenID)
		if !ok {
			m.logger.Warn("exit-price-unavailable",
				zap.String("token_id", tokenID),
				zap.String("market_id", pos.MarketID))
			continue
		}

		rate := m.feeModel.RateFor(mkt.TakerFeeBps)
		closed = append(closed, m.closeLocked(pos, exitPrice, now, reason, rate))
	}

	sort.Slice(closed, func(i, j int) bool {
		return closed[i].Position.TokenID < closed[j].Position.TokenID
	})

	if len(closed) > 0 {
		m.updateStatsMetricsLocked()
	}

	return closed
}

// Close closes one position at the given price with the given reason,
// regardless of exit conditions. Returns false when no position is open for
// the token.
func (m *Manager) Close(tokenID string, exitPrice float64, reason types.ExitReason) (types.ExitRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.open[tokenID]
	if !ok {
		return types.ExitRecord{}, false
	}

	record := m.closeLocked(pos, exitPrice, m.now(), reason, m.feeModel.TakerRate())
	m.updateStatsMetricsLocked()

	return record, true
}

// CloseAll closes every open position at the price reported by the pricer,
// tagging each exit as manual. Tokens the pricer cannot price are closed at
// their entry price. Used on shutdown so the exit history accounts for every
// position ever opened.
func (m *Manager) CloseAll(pricer func(tokenID string) (float64, bool)) []types.ExitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var closed []types.ExitRecord

	for tokenID, pos := range m.open {
		price, ok := pricer(tokenID)
		if !ok {
			price = pos.EntryPrice
		}
		closed = append(closed, m.closeLocked(pos, price, now, types.ExitManual, m.feeModel.TakerRate()))
	}

	sort.Slice(closed, func(i, j int) bool {
		return closed[i].Position.TokenID < closed[j].Position.TokenID
	})

	if len(closed) > 0 {
		m.updateStatsMetricsLocked()
	}

	return closed
}

// OpenPositions returns a copy of the open set ordered by entry time.
func (m *Manager) OpenPositions() []types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Position, 0, len(m.open))
	for _, pos := range m.open {
		out = append(out, pos)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].TokenID < out[j].TokenID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})

	return out
}

// OpenCount returns the number of open positions.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.open)
}

// History returns a copy of the append-only exit history.
func (m *Manager) History() []types.ExitRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ExitRecord, len(m.history))
	copy(out, m.history)

	return out
}

// Stats folds the exit history into aggregate statistics. The result is
// always derivable from History alone.
func (m *Manager) Stats() types.PositionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.statsLocked()
}

// closeLocked converts an open position into an exit record. Callers must
// hold the write lock.
func (m *Manager) closeLocked(pos types.Position, exitPrice float64, exitTime time.Time, reason types.ExitReason, feeRate float64) types.ExitRecord {
	var gross float64
	switch pos.Side {
	case types.SideSell:
		gross = (pos.EntryPrice - exitPrice) * pos.Size
	default:
		gross = (exitPrice - pos.EntryPrice) * pos.Size
	}

	exitFees := pos.Size * exitPrice * feeRate
	record := types.ExitRecord{
		Position:  pos,
		ExitPrice: exitPrice,
		ExitTime:  exitTime,
		Reason:    reason,
		PnL:       gross - exitFees,
		Fees:      exitFees,
	}

	delete(m.open, pos.TokenID)
	m.history = append(m.history, record)

	m.logger.Info("position-closed",
		zap.String("market_id", pos.MarketID),
		zap.String("token_id", pos.TokenID),
		zap.String("reason", string(reason)),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", record.PnL),
		zap.Float64("fees", exitFees))

	ExitsTotal.WithLabelValues(string(reason)).Inc()
	OpenPositions.Set(float64(len(m.open)))

	return record
}

func (m *Manager) statsLocked() types.PositionStats {
	stats := types.PositionStats{TradeCount: len(m.history)}
	if stats.TradeCount == 0 {
		return stats
	}

	wins := 0
	for _, rec := range m.history {
		stats.TotalPnL += rec.PnL
		if rec.PnL > 0 {
			wins++
		}
	}
	stats.WinRate = float64(wins) / float64(stats.TradeCount)

	return stats
}

func (m *Manager) updateStatsMetricsLocked() {
	stats := m.statsLocked()
	TotalPnLUSD.Set(stats.TotalPnL)
	WinRate.Set(stats.WinRate)
}
