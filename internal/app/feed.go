package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/feed"
)

// feedSyncInterval is how often tracked tokens are reconciled with the
// feed's subscription set. The feed ignores ids it already tracks.
const feedSyncInterval = 30 * time.Second

// syncFeedSubscriptions keeps the feed subscribed to every token the engine
// currently tracks.
func (a *App) syncFeedSubscriptions() {
	defer a.wg.Done()

	ticker := time.NewTicker(feedSyncInterval)
	defer ticker.Stop()

	for {
		a.subscribeTrackedTokens()

		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) subscribeTrackedTokens() {
	markets, _ := a.engine.Markets()
	if len(markets) == 0 {
		return
	}

	tokenIDs := make([]string, 0, len(markets)*2)
	for _, m := range markets {
		tokenIDs = append(tokenIDs, m.TokenIDs...)
	}

	if err := a.feed.Subscribe(a.ctx, tokenIDs); err != nil {
		a.logger.Warn("feed-subscribe-failed",
			zap.Int("token_count", len(tokenIDs)),
			zap.Error(err))
	}
}

// drainFeedEvents consumes the feed's broadcast channel so slow cycles never
// back it up. Price updates surface at debug level.
func (a *App) drainFeedEvents() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case msg, ok := <-a.feed.Events():
			if !ok {
				return
			}
			if msg.Type == feed.EventPriceUpdate {
				a.logger.Debug("feed-price-update",
					zap.String("token_id", msg.TokenID),
					zap.Float64("price", msg.Price))
			}
		}
	}
}
