package testutil

import "github.com/oddslab/parity-arb/pkg/types"

// BinaryMarket returns a tradable two-outcome market. Token IDs derive
// from the market ID; prices are positional, yes first.
func BinaryMarket(id string, yesPrice, noPrice float64) types.Market {
	return types.Market{
		ID:              id,
		Question:        "Will " + id + " resolve yes?",
		Slug:            id,
		Outcomes:        []string{"Yes", "No"},
		OutcomePrices:   []float64{yesPrice, noPrice},
		TokenIDs:        []string{YesToken(id), NoToken(id)},
		TakerFeeBps:     types.DefaultTakerFeeBps,
		Liquidity:       50000,
		Volume24h:       12000,
		Active:          true,
		AcceptingOrders: true,
	}
}

// YesToken returns the yes-side token ID of a BinaryMarket.
func YesToken(id string) string {
	return id + "-yes"
}

// NoToken returns the no-side token ID of a BinaryMarket.
func NoToken(id string) string {
	return id + "-no"
}
