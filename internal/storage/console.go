package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/pkg/types"
)

// ConsoleStorage implements Storage by logging exit summaries.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// SaveExit logs the exit record as one structured entry.
func (c *ConsoleStorage) SaveExit(ctx context.Context, rec types.ExitRecord) error {
	c.logger.Info("position-exit",
		zap.String("market_id", rec.Position.MarketID),
		zap.String("token_id", rec.Position.TokenID),
		zap.String("side", string(rec.Position.Side)),
		zap.String("reason", string(rec.Reason)),
		zap.Float64("size", rec.Position.Size),
		zap.Float64("entry_price", rec.Position.EntryPrice),
		zap.Float64("exit_price", rec.ExitPrice),
		zap.Duration("held", rec.ExitTime.Sub(rec.Position.EntryTime)),
		zap.Float64("pnl", rec.PnL),
		zap.Float64("fees", rec.Fees))

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
