package positions

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/oddslab/parity-arb/internal/fees"
	"github.com/oddslab/parity-arb/pkg/types"
)

const tolerance = 1e-9

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	mgr, err := New(&Config{
		ProfitTargetSpread: 0.005,
		StopLossSpread:     0.02,
		MaxHold:            time.Hour,
		FeeModel:           fees.NewModel(200),
		Logger:             zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return mgr
}

// binaryMarket builds a two-outcome market whose spread is |yes+no-1|.
func binaryMarket(id string, yes, no float64) types.Market {
	return types.Market{
		ID:              id,
		Question:        "test market " + id,
		Outcomes:        []string{"Yes", "No"},
		OutcomePrices:   []float64{yes, no},
		TokenIDs:        []string{id + "-yes", id + "-no"},
		TakerFeeBps:     200,
		Active:          true,
		AcceptingOrders: true,
	}
}

func openPosition(mgr *Manager, marketID, tokenID string, side types.Side, size, entryPrice, entrySpread float64, entryTime time.Time) {
	mgr.Open(types.Position{
		MarketID:    marketID,
		TokenID:     tokenID,
		Side:        side,
		Size:        size,
		EntryPrice:  entryPrice,
		EntryTime:   entryTime,
		EntrySpread: entrySpread,
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid-config",
			config: &Config{
				ProfitTargetSpread: 0.005,
				StopLossSpread:     0.02,
				MaxHold:            time.Hour,
				FeeModel:           fees.NewModel(200),
				Logger:             logger,
			},
			wantErr: false,
		},
		{
			name:    "nil-config",
			config:  nil,
			wantErr: true,
			errMsg:  "config cannot be nil",
		},
		{
			name: "nil-logger",
			config: &Config{
				ProfitTargetSpread: 0.005,
				StopLossSpread:     0.02,
				MaxHold:            time.Hour,
			},
			wantErr: true,
			errMsg:  "logger cannot be nil",
		},
		{
			name: "zero-profit-target",
			config: &Config{
				StopLossSpread: 0.02,
				MaxHold:        time.Hour,
				Logger:         logger,
			},
			wantErr: true,
			errMsg:  "profit target spread must be positive",
		},
		{
			name: "zero-stop-loss",
			config: &Config{
				ProfitTargetSpread: 0.005,
				MaxHold:            time.Hour,
				Logger:             logger,
			},
			wantErr: true,
			errMsg:  "stop loss spread must be positive",
		},
		{
			name: "zero-max-hold",
			config: &Config{
				ProfitTargetSpread: 0.005,
				StopLossSpread:     0.02,
				Logger:             logger,
			},
			wantErr: true,
			errMsg:  "max hold must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestManager_OpenOrderedSnapshot(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	openPosition(mgr, "m2", "m2-yes", types.SideBuy, 5, 0.48, 0.05, base.Add(time.Minute))
	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 5, 0.47, 0.06, base)

	if got := mgr.OpenCount(); got != 2 {
		t.Fatalf("OpenCount() = %d, want 2", got)
	}

	snapshot := mgr.OpenPositions()
	if snapshot[0].TokenID != "m1-yes" || snapshot[1].TokenID != "m2-yes" {
		t.Errorf("snapshot order = [%s, %s], want entry-time order", snapshot[0].TokenID, snapshot[1].TokenID)
	}
}

func TestManager_ReopenReplaces(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	now := time.Now()

	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 5, 0.48, 0.05, now)
	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 7, 0.46, 0.08, now)

	if got := mgr.OpenCount(); got != 1 {
		t.Fatalf("OpenCount() = %d, want 1 after reopen", got)
	}

	pos := mgr.OpenPositions()[0]
	if pos.Size != 7 || pos.EntryPrice != 0.46 {
		t.Errorf("open position = {size %f, entry %f}, want the replacement", pos.Size, pos.EntryPrice)
	}
}

func TestManager_MeanReversionExit(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.48, 0.05, time.Now())

	// Spread has collapsed to 0.002, below the 0.005 target.
	market := binaryMarket("m1", 0.501, 0.501)

	closed := mgr.CheckExits([]types.Market{market})
	if len(closed) != 1 {
		t.Fatalf("closed %d positions, want 1", len(closed))
	}

	rec := closed[0]
	if rec.Reason != types.ExitMeanReversion {
		t.Errorf("reason = %q, want %q", rec.Reason, types.ExitMeanReversion)
	}
	if rec.ExitPrice != 0.501 {
		t.Errorf("exit price = %f, want the yes token price 0.501", rec.ExitPrice)
	}
	if got := mgr.OpenCount(); got != 0 {
		t.Errorf("OpenCount() = %d, want 0 after exit", got)
	}
}

func TestManager_StopLossExit(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.48, 0.05, time.Now())

	// Spread widened to 0.08, beyond entry 0.05 + stop 0.02.
	market := binaryMarket("m1", 0.46, 0.46)

	closed := mgr.CheckExits([]types.Market{market})
	if len(closed) != 1 {
		t.Fatalf("closed %d positions, want 1", len(closed))
	}
	if closed[0].Reason != types.ExitStopLoss {
		t.Errorf("reason = %q, want %q", closed[0].Reason, types.ExitStopLoss)
	}
}

func TestManager_TimeoutExit(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return current }

	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.48, 0.03, current)

	// Spread 0.04 sits between the profit target and the stop band, so only
	// the hold clock can trigger.
	market := binaryMarket("m1", 0.52, 0.52)

	closed := mgr.CheckExits([]types.Market{market})
	if len(closed) != 0 {
		t.Fatalf("closed %d positions before timeout, want 0", len(closed))
	}

	current = current.Add(2 * time.Hour)

	closed = mgr.CheckExits([]types.Market{market})
	if len(closed) != 1 {
		t.Fatalf("closed %d positions, want 1", len(closed))
	}
	if closed[0].Reason != types.ExitTimeout {
		t.Errorf("reason = %q, want %q", closed[0].Reason, types.ExitTimeout)
	}
}

func TestManager_MeanReversionWinsPriority(t *testing.T) {
	t.Parallel()

	// Wide profit target and tight stop so both predicates hold at once.
	mgr, err := New(&Config{
		ProfitTargetSpread: 0.10,
		StopLossSpread:     0.01,
		MaxHold:            time.Hour,
		FeeModel:           fees.NewModel(200),
		Logger:             zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.48, 0.02, time.Now())

	// Current spread 0.05: below target 0.10 and above entry 0.02 + stop 0.01.
	market := binaryMarket("m1", 0.475, 0.475)

	closed := mgr.CheckExits([]types.Market{market})
	if len(closed) != 1 {
		t.Fatalf("closed %d positions, want 1", len(closed))
	}
	if closed[0].Reason != types.ExitMeanReversion {
		t.Errorf("reason = %q, want %q by priority", closed[0].Reason, types.ExitMeanReversion)
	}
}

func TestManager_BoundariesHold(t *testing.T) {
	t.Parallel()

	// Exact-boundary values must not trigger: all three tests are strict.
	mgr, err := New(&Config{
		ProfitTargetSpread: 0.25,
		StopLossSpread:     0.25,
		MaxHold:            time.Hour,
		FeeModel:           fees.NewModel(200),
		Logger:             zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return current }

	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.50, 0.0, current)

	// Spread exactly 0.25 == profit target and == entry (0) + stop (0.25).
	market := binaryMarket("m1", 0.50, 0.25)

	current = current.Add(time.Hour) // hold exactly equals max hold

	closed := mgr.CheckExits([]types.Market{market})
	if len(closed) != 0 {
		t.Errorf("closed %d positions at exact boundaries, want 0", len(closed))
	}
}

func TestManager_PnL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		side      types.Side
		entry     float64
		exit      float64
		size      float64
		wantPnL   float64
		wantFees  float64
	}{
		{
			// (0.50-0.48)*100 - 100*0.50*0.02 = 2.00 - 1.00
			name:     "buy-profit",
			side:     types.SideBuy,
			entry:    0.48,
			exit:     0.50,
			size:     100,
			wantPnL:  1.00,
			wantFees: 1.00,
		},
		{
			// (0.52-0.50)*100 - 100*0.50*0.02 = 2.00 - 1.00
			name:     "sell-profit",
			side:     types.SideSell,
			entry:    0.52,
			exit:     0.50,
			size:     100,
			wantPnL:  1.00,
			wantFees: 1.00,
		},
		{
			// (0.44-0.48)*100 - 100*0.44*0.02 = -4.00 - 0.88
			name:     "buy-loss",
			side:     types.SideBuy,
			entry:    0.48,
			exit:     0.44,
			size:     100,
			wantPnL:  -4.88,
			wantFees: 0.88,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newTestManager(t)
			openPosition(mgr, "m1", "m1-yes", tt.side, tt.size, tt.entry, 0.05, time.Now())

			rec, ok := mgr.Close("m1-yes", tt.exit, types.ExitManual)
			if !ok {
				t.Fatal("Close() reported no open position")
			}

			if math.Abs(rec.PnL-tt.wantPnL) > tolerance {
				t.Errorf("PnL = %f, want %f", rec.PnL, tt.wantPnL)
			}
			if math.Abs(rec.Fees-tt.wantFees) > tolerance {
				t.Errorf("Fees = %f, want %f", rec.Fees, tt.wantFees)
			}
		})
	}
}

func TestManager_StatsFoldHistory(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)

	if stats := mgr.Stats(); stats.TradeCount != 0 || stats.WinRate != 0 || stats.TotalPnL != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}

	now := time.Now()
	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.48, 0.05, now)
	openPosition(mgr, "m2", "m2-yes", types.SideBuy, 100, 0.48, 0.05, now)

	// One win (+1.00) and one loss (-4.88).
	if _, ok := mgr.Close("m1-yes", 0.50, types.ExitMeanReversion); !ok {
		t.Fatal("first Close failed")
	}
	if _, ok := mgr.Close("m2-yes", 0.44, types.ExitStopLoss); !ok {
		t.Fatal("second Close failed")
	}

	stats := mgr.Stats()
	if stats.TradeCount != 2 {
		t.Errorf("TradeCount = %d, want 2", stats.TradeCount)
	}
	if math.Abs(stats.WinRate-0.5) > tolerance {
		t.Errorf("WinRate = %f, want 0.5", stats.WinRate)
	}
	if math.Abs(stats.TotalPnL-(-3.88)) > tolerance {
		t.Errorf("TotalPnL = %f, want -3.88", stats.TotalPnL)
	}

	if got := len(mgr.History()); got != 2 {
		t.Errorf("History length = %d, want 2", got)
	}
}

func TestManager_MissingMarketHolds(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.48, 0.05, time.Now())

	closed := mgr.CheckExits([]types.Market{binaryMarket("other", 0.50, 0.50)})
	if len(closed) != 0 {
		t.Errorf("closed %d positions without market data, want 0", len(closed))
	}
	if got := mgr.OpenCount(); got != 1 {
		t.Errorf("OpenCount() = %d, want 1", got)
	}
}

func TestManager_CloseAllManual(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	now := time.Now()

	openPosition(mgr, "m1", "m1-yes", types.SideBuy, 100, 0.48, 0.05, now)
	openPosition(mgr, "m2", "m2-yes", types.SideBuy, 100, 0.47, 0.06, now)

	// Pricer only knows the first token; the second falls back to entry.
	closed := mgr.CloseAll(func(tokenID string) (float64, bool) {
		if tokenID == "m1-yes" {
			return 0.49, true
		}
		return 0, false
	})

	if len(closed) != 2 {
		t.Fatalf("closed %d positions, want 2", len(closed))
	}
	for _, rec := range closed {
		if rec.Reason != types.ExitManual {
			t.Errorf("reason = %q, want %q", rec.Reason, types.ExitManual)
		}
	}

	if closed[0].ExitPrice != 0.49 {
		t.Errorf("priced exit = %f, want 0.49", closed[0].ExitPrice)
	}
	if closed[1].ExitPrice != 0.47 {
		t.Errorf("fallback exit = %f, want entry price 0.47", closed[1].ExitPrice)
	}
	if got := mgr.OpenCount(); got != 0 {
		t.Errorf("OpenCount() = %d, want 0", got)
	}
}
