package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/allowance"
	"github.com/oddslab/parity-arb/internal/engine"
	"github.com/oddslab/parity-arb/internal/feed"
	"github.com/oddslab/parity-arb/pkg/types"
)

// marketListLimit caps the /api/markets payload for the dashboard table.
const marketListLimit = 20

// EngineSource supplies the trading engine state served by the API.
// *engine.Engine satisfies it.
type EngineSource interface {
	Status() engine.Status
	Markets() ([]types.Market, time.Time)
	Signals() []types.Signal
}

// PermissionStore is the allowance surface driven by the permission endpoints.
// *allowance.Ledger satisfies it.
type PermissionStore interface {
	Status() allowance.Status
	Install(g allowance.Grant) error
	Revoke() bool
}

// PositionReader exposes open positions and lifetime trade statistics.
// *positions.Manager satisfies it.
type PositionReader interface {
	OpenPositions() []types.Position
	Stats() types.PositionStats
}

// FeedReader reports the websocket feed state. *feed.Client satisfies it.
type FeedReader interface {
	Snapshot() feed.Snapshot
}

// apiHandler handles the /api routes.
type apiHandler struct {
	engine    EngineSource
	ledger    PermissionStore
	positions PositionReader
	feed      FeedReader
	logger    *zap.Logger
}

// StatusResponse reports the engine state machine plus process uptime.
type StatusResponse struct {
	engine.Status
	Uptime string `json:"uptime"`
}

// StatsResponse is the dashboard summary card.
type StatsResponse struct {
	Connected        bool    `json:"connected"`
	PermissionActive bool    `json:"permission_active"`
	DailyLimit       float64 `json:"daily_limit"`
	SpentToday       float64 `json:"spent_today"`
	TotalTrades      int     `json:"total_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalPnL         float64 `json:"total_pnl"`
	OpenPositions    int     `json:"open_positions"`
}

// MarketSummary is one row of the dashboard market table.
type MarketSummary struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Slug     string    `json:"slug"`
	Outcomes []string  `json:"outcomes"`
	Prices   []float64 `json:"prices"`
	Active   bool      `json:"active"`
}

// MarketsResponse lists tracked markets. TotalCount covers the full set even
// when Markets is truncated; LastUpdateMS is elapsed time since the last
// successful fetch, zero when no fetch has completed.
type MarketsResponse struct {
	Markets      []MarketSummary `json:"markets"`
	TotalCount   int             `json:"total_count"`
	LastUpdateMS int64           `json:"last_update_ms"`
	SignalCount  int             `json:"signal_count"`
}

// PositionsResponse lists the open position set.
type PositionsResponse struct {
	Positions []types.Position `json:"positions"`
	Count     int              `json:"count"`
}

// SignalsResponse lists the signals from the most recent cycle.
type SignalsResponse struct {
	Signals []types.Signal `json:"signals"`
	Count   int            `json:"count"`
}

// FeedResponse reports the websocket price feed state. Enabled is false when
// the agent runs without a feed.
type FeedResponse struct {
	Enabled      bool                       `json:"enabled"`
	Connected    bool                       `json:"connected"`
	Subscribed   int                        `json:"subscribed"`
	CachedPrices int                        `json:"cached_prices"`
	LastEvent    time.Time                  `json:"last_event"`
	Prices       map[string]feed.PricePoint `json:"prices,omitempty"`
}

// AckResponse acknowledges a permission install.
type AckResponse struct {
	Status string `json:"status"`
}

// RevokeResponse reports whether a revocation found an active grant.
type RevokeResponse struct {
	Status  string `json:"status"`
	Revoked bool   `json:"revoked"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleStatus handles GET /api/status requests.
func (h *apiHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()

	uptime := "0s"
	if !st.StartedAt.IsZero() {
		uptime = time.Since(st.StartedAt).Round(time.Second).String()
	}

	h.writeJSON(w, StatusResponse{Status: st, Uptime: uptime})
}

// handleStats handles GET /api/stats requests.
func (h *apiHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	ledgerStatus := h.ledger.Status()
	stats := h.positions.Stats()

	h.writeJSON(w, StatsResponse{
		// The REST market client holds no persistent connection; the
		// dashboard treats a serving process as connected.
		Connected:        true,
		PermissionActive: ledgerStatus.Active,
		DailyLimit:       ledgerStatus.DailyLimit,
		SpentToday:       ledgerStatus.SpentToday,
		TotalTrades:      stats.TradeCount,
		WinRate:          stats.WinRate * 100,
		TotalPnL:         stats.TotalPnL,
		OpenPositions:    len(h.positions.OpenPositions()),
	})
}

// handleMarkets handles GET /api/markets requests.
func (h *apiHandler) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets, updatedAt := h.engine.Markets()

	total := len(markets)
	if len(markets) > marketListLimit {
		markets = markets[:marketListLimit]
	}

	summaries := make([]MarketSummary, 0, len(markets))
	for _, m := range markets {
		summaries = append(summaries, MarketSummary{
			ID:       m.ID,
			Question: m.Question,
			Slug:     m.Slug,
			Outcomes: m.Outcomes,
			Prices:   m.OutcomePrices,
			Active:   m.Active,
		})
	}

	var lastUpdateMS int64
	if !updatedAt.IsZero() {
		lastUpdateMS = time.Since(updatedAt).Milliseconds()
	}

	h.writeJSON(w, MarketsResponse{
		Markets:      summaries,
		TotalCount:   total,
		LastUpdateMS: lastUpdateMS,
		SignalCount:  len(h.engine.Signals()),
	})
}

// handlePositions handles GET /api/positions requests.
func (h *apiHandler) handlePositions(w http.ResponseWriter, r *http.Request) {
	open := h.positions.OpenPositions()
	h.writeJSON(w, PositionsResponse{Positions: open, Count: len(open)})
}

// handleSignals handles GET /api/signals requests.
func (h *apiHandler) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals := h.engine.Signals()
	h.writeJSON(w, SignalsResponse{Signals: signals, Count: len(signals)})
}

// handleFeed handles GET /api/feed requests.
func (h *apiHandler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.writeJSON(w, FeedResponse{Enabled: false})
		return
	}

	snap := h.feed.Snapshot()
	h.writeJSON(w, FeedResponse{
		Enabled:      true,
		Connected:    snap.Connected,
		Subscribed:   snap.Subscribed,
		CachedPrices: len(snap.Prices),
		LastEvent:    snap.LastEvent,
		Prices:       snap.Prices,
	})
}

// handlePermission handles POST /api/permission requests. The body is a
// spending permission document; installing it replaces the active grant.
func (h *apiHandler) handlePermission(w http.ResponseWriter, r *http.Request) {
	var grant allowance.Grant
	if err := json.NewDecoder(r.Body).Decode(&grant); err != nil {
		h.logger.Warn("permission-decode-failed", zap.Error(err))
		h.writeError(w, "invalid permission document", http.StatusBadRequest)
		return
	}

	if err := h.ledger.Install(grant); err != nil {
		h.logger.Warn("permission-install-rejected", zap.Error(err))
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, AckResponse{Status: "ok"})
}

// handleRevoke handles POST /api/permission/revoke requests.
func (h *apiHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	revoked := h.ledger.Revoke()
	h.writeJSON(w, RevokeResponse{Status: "ok", Revoked: revoked})
}

// writeJSON writes a 200 JSON response.
func (h *apiHandler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *apiHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
