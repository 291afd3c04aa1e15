package detector

import (
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/oddslab/parity-arb/pkg/types"
)

const tolerance = 1e-9

func newTestDetector(t *testing.T, minSpread, minProfit float64) *Detector {
	t.Helper()

	d, err := New(&Config{
		MinSpreadThreshold: minSpread,
		MinProfitThreshold: minProfit,
		Logger:             zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return d
}

func scanMarket(id string, prices []float64, active, accepting bool) types.Market {
	tokens := make([]string, len(prices))
	outcomes := make([]string, len(prices))
	for i := range prices {
		tokens[i] = id + "-t" + string(rune('0'+i))
		outcomes[i] = "Outcome " + string(rune('0'+i))
	}

	return types.Market{
		ID:              id,
		Question:        "scan market " + id,
		Outcomes:        outcomes,
		OutcomePrices:   prices,
		TokenIDs:        tokens,
		Active:          active,
		AcceptingOrders: accepting,
	}
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
			name:    "valid-config",
			config:  &Config{MinSpreadThreshold: 0.02, MinProfitThreshold: 0.10, Logger: logger},
			wantErr: false,
		},
		{
			name:    "nil-config",
			config:  nil,
			wantErr: true,
			errMsg:  "config cannot be nil",
		},
		{
			name:    "nil-logger",
			config:  &Config{MinSpreadThreshold: 0.02},
			wantErr: true,
			errMsg:  "logger cannot be nil",
		},
		{
			name:    "zero-threshold",
			config:  &Config{MinProfitThreshold: 0.10, Logger: logger},
			wantErr: true,
			errMsg:  "min spread threshold must be positive",
		},
		{
			name:    "negative-min-profit",
			config:  &Config{MinSpreadThreshold: 0.02, MinProfitThreshold: -0.1, Logger: logger},
			wantErr: true,
			errMsg:  "min profit threshold must be non-negative",
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

func TestDetector_Scan(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, 0.02, 0.10)

	tests := []struct {
		name       string
		market     types.Market
		wantSignal bool
		wantSide   types.Side
		wantSpread float64
	}{
		{
			name:       "underpriced-emits-buy",
			market:     scanMarket("m1", []float64{0.48, 0.47}, true, true),
			wantSignal: true,
			wantSide:   types.SideBuy,
			wantSpread: 0.05,
		},
		{
			name:       "overpriced-emits-sell",
			market:     scanMarket("m2", []float64{0.53, 0.52}, true, true),
			wantSignal: true,
			wantSide:   types.SideSell,
			wantSpread: 0.05,
		},
		{
			name:       "balanced-no-signal",
			market:     scanMarket("m3", []float64{0.60, 0.40}, true, true),
			wantSignal: false,
		},
		{
			name:       "small-spread-no-signal",
			market:     scanMarket("m4", []float64{0.50, 0.49}, true, true),
			wantSignal: false,
		},
		{
			name:       "inactive-filtered",
			market:     scanMarket("m5", []float64{0.48, 0.47}, false, true),
			wantSignal: false,
		},
		{
			name:       "not-accepting-filtered",
			market:     scanMarket("m6", []float64{0.48, 0.47}, true, false),
			wantSignal: false,
		},
		{
			name:       "missing-prices-filtered",
			market:     scanMarket("m7", []float64{0.48}, true, true),
			wantSignal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := d.Scan([]types.Market{tt.market})

			if !tt.wantSignal {
				if len(signals) != 0 {
					t.Fatalf("Scan emitted %d signals, want 0", len(signals))
				}
				return
			}

			if len(signals) != 1 {
				t.Fatalf("Scan emitted %d signals, want 1", len(signals))
			}

			sig := signals[0]
			if sig.MarketID != tt.market.ID {
				t.Errorf("MarketID = %q, want %q", sig.MarketID, tt.market.ID)
			}
			if sig.Side != tt.wantSide {
				t.Errorf("Side = %q, want %q", sig.Side, tt.wantSide)
			}
			if math.Abs(sig.Spread-tt.wantSpread) > tolerance {
				t.Errorf("Spread = %f, want %f", sig.Spread, tt.wantSpread)
			}
			if sig.Edge != sig.Spread {
				t.Errorf("Edge = %f, want same as spread %f", sig.Edge, sig.Spread)
			}
			if sig.ID == "" {
				t.Error("signal ID is empty")
			}
		})
	}
}

func TestDetector_BoundarySpreadDoesNotTrigger(t *testing.T) {
	t.Parallel()

	// Threshold chosen so the spread is exactly representable: prices sum to
	// 0.75, spread exactly 0.25.
	d := newTestDetector(t, 0.25, 0.10)

	signals := d.Scan([]types.Market{scanMarket("m1", []float64{0.50, 0.25}, true, true)})
	if len(signals) != 0 {
		t.Errorf("Scan emitted %d signals at exact threshold, want 0", len(signals))
	}

	// Just past the threshold triggers.
	signals = d.Scan([]types.Market{scanMarket("m2", []float64{0.25, 0.25}, true, true)})
	if len(signals) != 1 {
		t.Errorf("Scan emitted %d signals above threshold, want 1", len(signals))
	}
}

func TestDetector_ScanOrderFollowsInput(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, 0.02, 0.10)

	markets := []types.Market{
		scanMarket("m1", []float64{0.48, 0.47}, true, true),
		scanMarket("m2", []float64{0.50, 0.50}, true, true),
		scanMarket("m3", []float64{0.53, 0.52}, true, true),
	}

	signals := d.Scan(markets)
	if len(signals) != 2 {
		t.Fatalf("Scan emitted %d signals, want 2", len(signals))
	}
	if signals[0].MarketID != "m1" || signals[1].MarketID != "m3" {
		t.Errorf("signal order = [%s, %s], want input order [m1, m3]",
			signals[0].MarketID, signals[1].MarketID)
	}
}

func TestExpectedProfit(t *testing.T) {
	t.Parallel()

	// 0.05*100 - 2*(100*0.48*0.02) - 100*0.01 = 5.00 - 1.92 - 1.00
	got := ExpectedProfit(0.05, 100, 0.48, 0.02, 0.01)
	if math.Abs(got-2.08) > tolerance {
		t.Errorf("ExpectedProfit = %f, want 2.08", got)
	}

	// No fees, no slippage: pure edge.
	got = ExpectedProfit(0.05, 100, 0.48, 0, 0)
	if math.Abs(got-5.00) > tolerance {
		t.Errorf("ExpectedProfit without costs = %f, want 5.00", got)
	}
}

func TestDetector_Profitable(t *testing.T) {
	t.Parallel()

	sig := types.Signal{
		ID:       "sig-1",
		MarketID: "m1",
		Spread:   0.05,
		Edge:     0.05,
		Side:     types.SideBuy,
		YesPrice: 0.48,
		NoPrice:  0.47,
	}

	t.Run("clears-threshold", func(t *testing.T) {
		d := newTestDetector(t, 0.02, 0.10)

		expected, ok := d.Profitable(sig, 100, 0.02, 0.01)
		if !ok {
			t.Fatal("Profitable = false, want true")
		}
		if math.Abs(expected-2.08) > tolerance {
			t.Errorf("expected profit = %f, want 2.08", expected)
		}
	})

	t.Run("exact-threshold-rejected", func(t *testing.T) {
		// Without fees or slippage the expectation is exactly edge*size,
		// so the strict comparison is deterministic.
		d := newTestDetector(t, 0.02, 5.0)

		flat := types.Signal{ID: "sig-2", MarketID: "m2", Spread: 0.5, Edge: 0.5, Side: types.SideBuy, YesPrice: 0.5}
		if _, ok := d.Profitable(flat, 10, 0, 0); ok {
			t.Error("Profitable = true at exact threshold, want false")
		}
	})

	t.Run("costs-swamp-edge", func(t *testing.T) {
		d := newTestDetector(t, 0.02, 0.10)

		// 0.05*100 - 2*(100*0.48*0.05) - 100*0.01 = 5.00 - 4.80 - 1.00 < 0
		if _, ok := d.Profitable(sig, 100, 0.05, 0.01); ok {
			t.Error("Profitable = true with negative expectation, want false")
		}
	})
}
