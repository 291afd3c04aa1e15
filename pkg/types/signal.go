package types

import "time"

// Signal is an arbitrage signal derived from one market snapshot. Signals
// are transient: they exist between detection and consumption within a
// cycle, and only the most recent batch is retained for observability.
type Signal struct {
	ID         string    `json:"id"`
	MarketID   string    `json:"market_id"`
	Spread     float64   `json:"spread"`
	Edge       float64   `json:"edge"`
	Side       Side      `json:"recommended_side"`
	YesPrice   float64   `json:"yes_price"`
	NoPrice    float64   `json:"no_price"`
	DetectedAt time.Time `json:"detected_at"`
}

// ExecutionResult is the outcome of one simulated fill. The simulator does
// not retain it; the caller persists accepted results into positions.
type ExecutionResult struct {
	ID             string        `json:"id"`
	TokenID        string        `json:"token_id"`
	Side           Side          `json:"side"`
	RequestedSize  float64       `json:"requested_size"`
	FilledSize     float64       `json:"filled_size"`
	ExecutionPrice float64       `json:"execution_price"`
	FeePaid        float64       `json:"fee_paid"`
	Slippage       float64       `json:"slippage"`
	TotalCost      float64       `json:"total_cost"`
	Latency        time.Duration `json:"latency"`
	ExecutedAt     time.Time     `json:"executed_at"`
	Success        bool          `json:"success"`
}
