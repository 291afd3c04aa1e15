package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// shutdownTimeout bounds the whole teardown, including position closeout
// and the HTTP server drain.
const shutdownTimeout = 10 * time.Second

// Shutdown stops the agent: the engine drains first, then open positions
// are closed at last known prices so the exit history accounts for every
// fill, then the outward surfaces come down.
func (a *App) Shutdown() error {
	a.logger.Info("agent-shutting-down")

	a.probe.MarkNotReady("shutting down")
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	a.awaitEngine(shutdownCtx)
	a.closeOpenPositions(shutdownCtx)

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			a.logger.Error("feed-close-error", zap.Error(err))
		}
	}

	a.wg.Wait()

	// Storage closes last: the engine and the closeout above both write exits.
	if err := a.store.Close(); err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("agent-shutdown-complete")

	return nil
}

// awaitEngine waits for the engine loop to finish its current cycle.
func (a *App) awaitEngine(ctx context.Context) {
	select {
	case err := <-a.engineDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("engine-error", zap.Error(err))
		}
	case <-ctx.Done():
		a.logger.Warn("engine-stop-timeout")
	}
}

// closeOpenPositions force-closes the open set, preferring live feed prices
// and falling back to the last cycle snapshot.
func (a *App) closeOpenPositions(ctx context.Context) {
	open := a.positions.OpenPositions()
	if len(open) == 0 {
		return
	}

	markets, _ := a.engine.Markets()
	lastPrices := make(map[string]float64)
	for _, m := range markets {
		for i, tokenID := range m.TokenIDs {
			if i < len(m.OutcomePrices) {
				lastPrices[tokenID] = m.OutcomePrices[i]
			}
		}
	}

	pricer := func(tokenID string) (float64, bool) {
		if a.feed != nil {
			if price, ok := a.feed.Price(tokenID); ok {
				return price, true
			}
		}
		price, ok := lastPrices[tokenID]
		return price, ok
	}

	records := a.positions.CloseAll(pricer)
	for _, rec := range records {
		if err := a.store.SaveExit(ctx, rec); err != nil {
			a.logger.Warn("exit-store-failed",
				zap.String("token_id", rec.Position.TokenID),
				zap.Error(err))
		}
	}

	a.logger.Info("open-positions-closed", zap.Int("count", len(records)))
}
