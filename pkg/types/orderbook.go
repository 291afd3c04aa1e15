package types

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Side is the direction of a simulated trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PriceLevel is one rung of an order book ladder.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// UnmarshalJSON decodes a CLOB level, where price and size arrive as
// strings. Malformed levels decode to zeros and are dropped by Normalize.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var aux struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	price, err := strconv.ParseFloat(aux.Price, 64)
	if err != nil {
		return nil
	}

	size, err := strconv.ParseFloat(aux.Size, 64)
	if err != nil {
		return nil
	}

	l.Price = price
	l.Size = size

	return nil
}

// OrderBook holds the bid/ask ladders for a single outcome token. Bids are
// ordered descending by price and asks ascending; Normalize establishes
// that ordering at the decode boundary and consumers rely on it.
type OrderBook struct {
	TokenID   string       `json:"token_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Normalize drops empty levels and sorts bids descending and asks
// ascending by price.
func (b *OrderBook) Normalize() {
	b.Bids = cleanLevels(b.Bids)
	b.Asks = cleanLevels(b.Asks)

	sort.Slice(b.Bids, func(i, j int) bool { return b.Bids[i].Price > b.Bids[j].Price })
	sort.Slice(b.Asks, func(i, j int) bool { return b.Asks[i].Price < b.Asks[j].Price })
}

func cleanLevels(levels []PriceLevel) []PriceLevel {
	out := levels[:0]
	for _, l := range levels {
		if l.Price > 0 && l.Size > 0 {
			out = append(out, l)
		}
	}

	return out
}

// BestBid returns the highest bid price. ok is false when the bid side is
// empty.
func (b *OrderBook) BestBid() (price float64, ok bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}

	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask price. ok is false when the ask side is
// empty.
func (b *OrderBook) BestAsk() (price float64, ok bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}

	return b.Asks[0].Price, true
}

// Midpoint returns the arithmetic mean of best bid and best ask. ok is
// false when either side is empty.
func (b *OrderBook) Midpoint() (mid float64, ok bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}

	return (bid + ask) / 2.0, true
}

// QuotedSpread returns best ask minus best bid. ok is false when either
// side is empty.
func (b *OrderBook) QuotedSpread() (spread float64, ok bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}

	return ask - bid, true
}

// BidDepth returns the total size resting on the bid side.
func (b *OrderBook) BidDepth() float64 {
	total := 0.0
	for _, l := range b.Bids {
		total += l.Size
	}

	return total
}

// AskDepth returns the total size resting on the ask side.
func (b *OrderBook) AskDepth() float64 {
	total := 0.0
	for _, l := range b.Asks {
		total += l.Size
	}

	return total
}

// Depth returns the total size on the side a trade of the given direction
// would consume.
func (b *OrderBook) Depth(side Side) float64 {
	if side == SideBuy {
		return b.AskDepth()
	}

	return b.BidDepth()
}

// ExecutionPrice walks the ladder a trade of the given direction would
// consume (asks for Buy, bids for Sell), filling min(remaining, level size)
// at each level, and returns the size-weighted average price for the full
// requested size. It returns ErrInsufficientLiquidity when the visible
// ladder cannot fill the whole size; there are no partial results.
func (b *OrderBook) ExecutionPrice(size float64, side Side) (float64, error) {
	if size <= 0 {
		return 0, ErrInsufficientLiquidity
	}

	levels := b.Asks
	if side == SideSell {
		levels = b.Bids
	}

	remaining := size
	cost := 0.0

	for _, level := range levels {
		fill := remaining
		if level.Size < fill {
			fill = level.Size
		}

		cost += fill * level.Price
		remaining -= fill
		if remaining <= 0 {
			break
		}
	}

	if remaining > 0 {
		return 0, ErrInsufficientLiquidity
	}

	return cost / size, nil
}
