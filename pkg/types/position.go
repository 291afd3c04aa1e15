package types

import "time"

// Position is an open exposure created from an accepted execution result.
// Positions are keyed by token ID in the lifecycle manager; at most one
// open position exists per token.
type Position struct {
	MarketID    string    `json:"market_id"`
	TokenID     string    `json:"token_id"`
	Side        Side      `json:"side"`
	Size        float64   `json:"size"`
	EntryPrice  float64   `json:"entry_price"`
	EntryTime   time.Time `json:"entry_time"`
	EntrySpread float64   `json:"entry_spread"`
}

// ExitReason tags why a position left the open set.
type ExitReason string

const (
	// ExitMeanReversion fires when the market spread narrows below the
	// profit target. Profit-target closes share this transition.
	ExitMeanReversion ExitReason = "MEAN_REVERSION"
	// ExitStopLoss fires when the spread widens past entry by the stop
	// loss margin.
	ExitStopLoss ExitReason = "STOP_LOSS"
	// ExitTimeout fires when the position exceeds the maximum hold time.
	ExitTimeout ExitReason = "TIMEOUT"
	// ExitManual marks an operator-initiated close.
	ExitManual ExitReason = "MANUAL"
)

// ExitRecord is the closed form of a position, appended to the immutable
// history that aggregate statistics fold over.
type ExitRecord struct {
	Position  Position   `json:"position"`
	ExitPrice float64    `json:"exit_price"`
	ExitTime  time.Time  `json:"exit_time"`
	Reason    ExitReason `json:"reason"`
	PnL       float64    `json:"pnl"`
	Fees      float64    `json:"fees"`
}

// PositionStats are pure folds over the exit history.
type PositionStats struct {
	TradeCount int     `json:"trade_count"`
	WinRate    float64 `json:"win_rate"`
	TotalPnL   float64 `json:"total_pnl"`
}
