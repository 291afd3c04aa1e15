package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/oddslab/parity-arb/pkg/types"
)

// TestMarketsCommand_Structure tests command is properly configured
func TestMarketsCommand_Structure(t *testing.T) {
	if marketsCmd == nil {
		t.Fatal("marketsCmd is nil")
	}

	if marketsCmd.Use != "markets" {
		t.Errorf("expected Use='markets', got '%s'", marketsCmd.Use)
	}

	if marketsCmd.RunE == nil {
		t.Error("RunE function is nil")
	}
}

// TestMarketsCommand_Flags tests command flags are defined
func TestMarketsCommand_Flags(t *testing.T) {
	limitFlag := marketsCmd.Flags().Lookup("limit")
	if limitFlag == nil {
		t.Fatal("limit flag not defined")
	}

	if limitFlag.Shorthand != "l" {
		t.Errorf("expected limit shorthand 'l', got '%s'", limitFlag.Shorthand)
	}

	if limitFlag.DefValue != "0" {
		t.Errorf("expected limit default '0', got '%s'", limitFlag.DefValue)
	}

	verboseFlag := marketsCmd.Flags().Lookup("verbose")
	if verboseFlag == nil {
		t.Fatal("verbose flag not defined")
	}

	if verboseFlag.Shorthand != "v" {
		t.Errorf("expected verbose shorthand 'v', got '%s'", verboseFlag.Shorthand)
	}

	if verboseFlag.DefValue != "false" {
		t.Errorf("expected verbose default 'false', got '%s'", verboseFlag.DefValue)
	}
}

func scanFixtureMarkets() []types.Market {
	return []types.Market{
		{
			ID:              "m-cheap",
			Question:        "Will it rain tomorrow in NYC?",
			Slug:            "rain-nyc",
			Outcomes:        []string{"Yes", "No"},
			OutcomePrices:   []float64{0.46, 0.48},
			TokenIDs:        []string{"m-cheap-yes", "m-cheap-no"},
			TakerFeeBps:     200,
			Liquidity:       50000,
			Volume24h:       12000,
			Active:          true,
			AcceptingOrders: true,
		},
		{
			ID:              "m-fair",
			Question:        "Will the coin land heads?",
			Slug:            "fair-coin",
			Outcomes:        []string{"Yes", "No"},
			OutcomePrices:   []float64{0.50, 0.50},
			TokenIDs:        []string{"m-fair-yes", "m-fair-no"},
			TakerFeeBps:     200,
			Liquidity:       50000,
			Volume24h:       12000,
			Active:          true,
			AcceptingOrders: true,
		},
	}
}

// TestPrintMarketsTable tests the table carries every market and marks the
// signaled one with its side
func TestPrintMarketsTable(t *testing.T) {
	markets := scanFixtureMarkets()
	signals := []types.Signal{
		{MarketID: "m-cheap", Side: types.SideBuy, Spread: 0.06},
	}

	var buf bytes.Buffer
	printMarketsTable(&buf, markets, signals, false)
	out := buf.String()

	if !strings.Contains(out, "rain-nyc") {
		t.Error("table is missing the signaled market slug")
	}

	if !strings.Contains(out, "fair-coin") {
		t.Error("table is missing the balanced market slug")
	}

	if !strings.Contains(out, "BUY 0.0600") {
		t.Errorf("table is missing the signal annotation, got:\n%s", out)
	}

	if strings.Contains(out, "LIQUIDITY") {
		t.Error("non-verbose table should not carry the liquidity column")
	}
}

// TestPrintMarketsTable_Verbose tests the verbose columns appear
func TestPrintMarketsTable_Verbose(t *testing.T) {
	var buf bytes.Buffer
	printMarketsTable(&buf, scanFixtureMarkets(), nil, true)
	out := buf.String()

	if !strings.Contains(out, "LIQUIDITY") {
		t.Error("verbose table is missing the liquidity column")
	}

	if !strings.Contains(out, "VOL24H") {
		t.Error("verbose table is missing the volume column")
	}
}

// TestTruncate tests long strings are shortened with an ellipsis
func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "short string unchanged", in: "abc", maxLen: 10, want: "abc"},
		{name: "exact length unchanged", in: "abcdefghij", maxLen: 10, want: "abcdefghij"},
		{name: "long string cut", in: "abcdefghijk", maxLen: 10, want: "abcdefg..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}
