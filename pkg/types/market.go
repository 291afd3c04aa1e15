package types

import (
	"encoding/json"
	"strconv"
)

// BalanceEpsilon absorbs floating-point rounding when checking the
// sum-to-one invariant. It is a tolerance, not a trading threshold.
const BalanceEpsilon = 0.001

// DefaultTakerFeeBps is assumed when the API does not report a fee schedule.
const DefaultTakerFeeBps = 200

// Market is one cycle's immutable snapshot of a binary prediction market.
// Outcome prices and token IDs are positionally aligned: OutcomePrices[i]
// belongs to TokenIDs[i].
type Market struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Slug            string    `json:"slug"`
	Outcomes        []string  `json:"outcomes"`
	OutcomePrices   []float64 `json:"outcome_prices"`
	TokenIDs        []string  `json:"token_ids"`
	TakerFeeBps     int       `json:"taker_fee_bps"`
	Liquidity       float64   `json:"liquidity"`
	Volume24h       float64   `json:"volume_24hr"`
	Active          bool      `json:"active"`
	AcceptingOrders bool      `json:"accepting_orders"`
}

// gammaMarket mirrors the Gamma API market object. The API encodes
// outcomes, outcomePrices and clobTokenIds as JSON strings inside JSON.
type gammaMarket struct {
	ID              string  `json:"id"`
	Question        string  `json:"question"`
	Slug            string  `json:"slug"`
	Outcomes        string  `json:"outcomes"`
	OutcomePrices   string  `json:"outcomePrices"`
	ClobTokenIDs    string  `json:"clobTokenIds"`
	Liquidity       float64 `json:"liquidityNum"`
	Volume24h       float64 `json:"volume24hr"`
	Active          *bool   `json:"active"`
	AcceptingOrders *bool   `json:"acceptingOrders"`
}

// UnmarshalJSON decodes a Gamma market object, expanding the stringified
// array fields. Markets missing trading flags are treated as tradable; the
// fetch query already filters to active markets.
func (m *Market) UnmarshalJSON(data []byte) error {
	var aux gammaMarket
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.ID = aux.ID
	m.Question = aux.Question
	m.Slug = aux.Slug
	m.Liquidity = aux.Liquidity
	m.Volume24h = aux.Volume24h
	m.TakerFeeBps = DefaultTakerFeeBps

	m.Active = aux.Active == nil || *aux.Active
	m.AcceptingOrders = aux.AcceptingOrders == nil || *aux.AcceptingOrders

	if aux.Outcomes != "" {
		var outcomes []string
		if err := json.Unmarshal([]byte(aux.Outcomes), &outcomes); err == nil {
			m.Outcomes = outcomes
		}
	}

	if aux.ClobTokenIDs != "" {
		var tokenIDs []string
		if err := json.Unmarshal([]byte(aux.ClobTokenIDs), &tokenIDs); err == nil {
			m.TokenIDs = tokenIDs
		}
	}

	if aux.OutcomePrices != "" {
		var raw []string
		if err := json.Unmarshal([]byte(aux.OutcomePrices), &raw); err == nil {
			prices := make([]float64, 0, len(raw))
			for _, s := range raw {
				p, err := strconv.ParseFloat(s, 64)
				if err != nil {
					prices = nil
					break
				}
				prices = append(prices, p)
			}
			m.OutcomePrices = prices
		}
	}

	return nil
}

// GammaEvent is one entry of the Gamma /events response.
type GammaEvent struct {
	ID      string   `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Markets []Market `json:"markets"`
}

// PriceSum returns the sum of all outcome prices.
func (m *Market) PriceSum() float64 {
	sum := 0.0
	for _, p := range m.OutcomePrices {
		sum += p
	}

	return sum
}

// Balanced reports whether the outcome prices sum to 1.0 within
// BalanceEpsilon.
func (m *Market) Balanced() bool {
	return m.Spread() < BalanceEpsilon
}

// Spread returns the absolute deviation of the price sum from 1.0.
func (m *Market) Spread() float64 {
	d := m.PriceSum() - 1.0
	if d < 0 {
		return -d
	}

	return d
}

// YesPrice returns the first outcome's price (0 if prices are missing).
func (m *Market) YesPrice() float64 {
	if len(m.OutcomePrices) > 0 {
		return m.OutcomePrices[0]
	}

	return 0
}

// NoPrice returns the second outcome's price (0 if prices are missing).
func (m *Market) NoPrice() float64 {
	if len(m.OutcomePrices) > 1 {
		return m.OutcomePrices[1]
	}

	return 0
}

// TakerFeeRate converts the taker fee from basis points to a fraction
// (200 bps -> 0.02).
func (m *Market) TakerFeeRate() float64 {
	return float64(m.TakerFeeBps) / 10000.0
}

// PriceForToken resolves a token ID to its positionally aligned outcome
// price. The second return is false when the token does not belong to this
// market or no price is hydrated for it.
func (m *Market) PriceForToken(tokenID string) (float64, bool) {
	for i, id := range m.TokenIDs {
		if id == tokenID {
			if i < len(m.OutcomePrices) {
				return m.OutcomePrices[i], true
			}

			return 0, false
		}
	}

	return 0, false
}

// Tradable reports whether the market can be traded this cycle.
func (m *Market) Tradable() bool {
	return m.Active && m.AcceptingOrders
}
