package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/pkg/chain"
)

// chainProbeTimeout bounds the startup connectivity check.
const chainProbeTimeout = 10 * time.Second

// Run starts the agent and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("agent-starting",
		zap.String("log_level", a.cfg.LogLevel),
		zap.Float64("trade_size", a.cfg.TradeSize),
		zap.Float64("daily_limit_usdc", a.cfg.DailyLimitUSDC),
		zap.Duration("poll_interval", a.cfg.PollInterval))

	a.startComponents()

	a.probe.MarkReady()

	a.logger.Info("agent-ready",
		zap.String("http_addr", ":"+a.cfg.HTTPPort),
		zap.Bool("feed_enabled", a.feed != nil),
		zap.Bool("balance_tracker", a.tracker != nil),
		zap.Bool("auto_grant", a.cfg.PermissionAutoGrant))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	// The control plane comes up first so probes answer during warmup.
	a.wg.Add(1)
	go a.runHTTPServer()

	a.probeChain()

	if a.cfg.PermissionAutoGrant {
		grant := a.ledger.Grant(a.cfg.DailyLimitUSDC, grantDuration(a.cfg.PermissionDurationDays))
		a.logger.Info("permission-auto-granted",
			zap.String("permission_id", grant.PermissionID),
			zap.Float64("daily_limit", grant.DailyLimit),
			zap.Time("expires_at", grant.ExpiresAt))
	}

	if a.feed != nil {
		a.feed.Start()
		a.wg.Add(2)
		go a.syncFeedSubscriptions()
		go a.drainFeedEvents()
	}

	if a.tracker != nil {
		a.wg.Add(1)
		go a.runTracker()
	}

	go func() {
		a.engineDone <- a.engine.Run(a.ctx)
	}()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()

	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runTracker() {
	defer a.wg.Done()

	err := a.tracker.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("chain-tracker-error", zap.Error(err))
	}
}

// probeChain checks RPC connectivity once at startup. Failures are logged;
// the agent trades simulated funds and never depends on the chain.
func (a *App) probeChain() {
	if a.cfg.PolygonRPCURL == "" {
		return
	}

	client, err := chain.NewClient(a.cfg.PolygonRPCURL, a.logger)
	if err != nil {
		a.logger.Warn("chain-probe-skipped", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, chainProbeTimeout)
	defer cancel()

	if _, err := client.Probe(ctx); err != nil {
		a.logger.Warn("chain-probe-failed",
			zap.String("rpc_url", a.cfg.PolygonRPCURL),
			zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
