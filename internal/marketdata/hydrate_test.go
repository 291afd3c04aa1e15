package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/oddslab/parity-arb/pkg/types"
)

// bookServer serves /book responses from a token -> (bid, ask) table.
// Tokens missing from the table get a 500.
func bookServer(t *testing.T, quotes map[string][2]string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenID := r.URL.Query().Get("token_id")
		quote, ok := quotes[tokenID]
		if !ok {
			http.Error(w, "no book", http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, `{
			"asset_id": %q,
			"bids": [{"price": %q, "size": "100"}],
			"asks": [{"price": %q, "size": "100"}]
		}`, tokenID, quote[0], quote[1])
	}))
}

func seededMarket(id string) types.Market {
	return types.Market{
		ID:            id,
		TokenIDs:      []string{id + "-yes", id + "-no"},
		OutcomePrices: []float64{0.5, 0.5},
	}
}

func TestClient_HydrateMarkets(t *testing.T) {
	server := bookServer(t, map[string][2]string{
		"m1-yes": {"0.47", "0.49"},
		"m1-no":  {"0.46", "0.48"},
		"m2-yes": {"0.51", "0.53"},
		"m2-no":  {"0.50", "0.54"},
	})
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL, 20)

	markets := []types.Market{seededMarket("m1"), seededMarket("m2")}

	updated := c.HydrateMarkets(context.Background(), markets)
	if updated != 4 {
		t.Errorf("expected 4 prices updated, got %d", updated)
	}

	want := [][]float64{{0.48, 0.47}, {0.52, 0.52}}
	for i, m := range markets {
		for j, price := range m.OutcomePrices {
			if price != want[i][j] {
				t.Errorf("market %s outcome %d: expected %f, got %f",
					m.ID, j, want[i][j], price)
			}
		}
	}
}

func TestClient_HydrateMarkets_FailuresKeepSeededPrice(t *testing.T) {
	server := bookServer(t, map[string][2]string{
		"m1-yes": {"0.47", "0.49"},
		// m1-no intentionally absent, its fetch fails.
	})
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL, 20)

	markets := []types.Market{seededMarket("m1")}

	updated := c.HydrateMarkets(context.Background(), markets)
	if updated != 1 {
		t.Errorf("expected 1 price updated, got %d", updated)
	}

	if markets[0].OutcomePrices[0] != 0.48 {
		t.Errorf("expected hydrated yes price 0.48, got %f", markets[0].OutcomePrices[0])
	}
	if markets[0].OutcomePrices[1] != 0.5 {
		t.Errorf("expected seeded no price preserved at 0.5, got %f", markets[0].OutcomePrices[1])
	}
}

func TestClient_HydrateMarkets_OneSidedBookSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"asset_id": "m1-yes",
			"bids": [],
			"asks": [{"price": "0.52", "size": "100"}]
		}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL, 20)

	markets := []types.Market{{
		ID:            "m1",
		TokenIDs:      []string{"m1-yes"},
		OutcomePrices: []float64{0.5},
	}}

	updated := c.HydrateMarkets(context.Background(), markets)
	if updated != 0 {
		t.Errorf("expected no updates from a one-sided book, got %d", updated)
	}
	if markets[0].OutcomePrices[0] != 0.5 {
		t.Errorf("expected price unchanged at 0.5, got %f", markets[0].OutcomePrices[0])
	}
}

func TestClient_HydrateMarkets_BoundedFanOut(t *testing.T) {
	var inflight, maxInflight atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		for {
			prev := maxInflight.Load()
			if cur <= prev || maxInflight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)

		fmt.Fprintf(w, `{
			"asset_id": %q,
			"bids": [{"price": "0.49", "size": "100"}],
			"asks": [{"price": "0.51", "size": "100"}]
		}`, r.URL.Query().Get("token_id"))
	}))
	defer server.Close()

	c, err := New(&Config{
		GammaURL:           server.URL,
		CLOBURL:            server.URL,
		MarketLimit:        20,
		HydrateConcurrency: 2,
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		Logger:             zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	markets := []types.Market{
		seededMarket("m1"), seededMarket("m2"),
		seededMarket("m3"), seededMarket("m4"),
	}

	updated := c.HydrateMarkets(context.Background(), markets)
	if updated != 8 {
		t.Errorf("expected 8 prices updated, got %d", updated)
	}

	if got := maxInflight.Load(); got > 2 {
		t.Errorf("expected at most 2 in-flight fetches, observed %d", got)
	}
}
