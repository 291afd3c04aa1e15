package marketdata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/pkg/types"
)

// HydrateMarkets replaces each outcome price with its order-book midpoint,
// fetching one book per (market, token) pair under a bounded fan-out. The
// markets slice is updated in place. Failed fetches and one-sided books
// leave the seeded price untouched; every in-flight fetch completes before
// the call returns. The return value is the number of prices updated.
func (c *Client) HydrateMarkets(ctx context.Context, markets []types.Market) int {
	start := time.Now()

	sem := make(chan struct{}, c.concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		updated int
	)

	for mi := range markets {
		mkt := &markets[mi]
		for ti := range mkt.TokenIDs {
			if ti >= len(mkt.OutcomePrices) {
				break
			}

			wg.Add(1)
			go func(mkt *types.Market, ti int) {
				defer wg.Done()

				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()

				tokenID := mkt.TokenIDs[ti]
				book, err := c.FetchOrderBook(ctx, tokenID)
				if err != nil {
					c.logger.Debug("hydration-fetch-failed",
						zap.String("market_id", mkt.ID),
						zap.String("token_id", tokenID),
						zap.Error(err))
					return
				}

				mid, ok := book.Midpoint()
				if !ok {
					c.logger.Debug("hydration-book-one-sided",
						zap.String("token_id", tokenID))
					return
				}

				mu.Lock()
				mkt.OutcomePrices[ti] = mid
				updated++
				mu.Unlock()
			}(mkt, ti)
		}
	}

	wg.Wait()

	PricesHydratedTotal.Add(float64(updated))

	c.logger.Debug("hydration-complete",
		zap.Int("markets", len(markets)),
		zap.Int("prices_updated", updated),
		zap.Duration("duration", time.Since(start)))

	return updated
}
