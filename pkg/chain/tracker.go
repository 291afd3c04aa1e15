package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Tracker periodically reads wallet balances and updates Prometheus gauges.
type Tracker struct {
	client       *Client
	address      common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// Config holds tracker configuration.
type Config struct {
	RPCURL       string
	Address      common.Address
	PollInterval time.Duration
	Logger       *zap.Logger
}

// New creates a new balance tracker.
func New(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL cannot be empty")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("wallet address cannot be zero")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}

	client, err := NewClient(cfg.RPCURL, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Tracker{
		client:       client,
		address:      cfg.Address,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}, nil
}

// Run starts the polling loop and blocks until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("chain-tracker-starting",
		zap.Duration("poll_interval", t.pollInterval),
		zap.String("address", t.address.Hex()))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	if err := t.poll(ctx); err != nil {
		t.logger.Warn("balance-poll-failed", zap.Error(err))
		UpdateErrorsTotal.Inc()
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("chain-tracker-stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := t.poll(ctx); err != nil {
				t.logger.Warn("balance-poll-failed", zap.Error(err))
				UpdateErrorsTotal.Inc()
			}
		}
	}
}

// poll performs one balance read and gauge update.
func (t *Tracker) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	balances, err := t.client.Balances(pollCtx, t.address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	NativeBalance.Set(balances.NativeFloat())
	USDCBalance.Set(balances.USDCFloat())
	LastUpdateTimestamp.Set(float64(time.Now().Unix()))

	t.logger.Debug("balance-poll-complete",
		zap.Float64("usdc", balances.USDCFloat()),
		zap.Float64("native", balances.NativeFloat()),
		zap.Duration("duration", time.Since(start)))

	return nil
}
