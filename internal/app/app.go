// Package app wires the agent together and owns its lifecycle: construction
// in dependency order, startup, and graceful shutdown. The engine drives
// trading; everything else here is plumbing around it.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/allowance"
	"github.com/oddslab/parity-arb/internal/engine"
	"github.com/oddslab/parity-arb/internal/feed"
	"github.com/oddslab/parity-arb/internal/positions"
	"github.com/oddslab/parity-arb/internal/storage"
	"github.com/oddslab/parity-arb/pkg/chain"
	"github.com/oddslab/parity-arb/pkg/config"
	"github.com/oddslab/parity-arb/pkg/healthprobe"
	"github.com/oddslab/parity-arb/pkg/httpserver"
)

// App is the agent orchestrator.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	probe      *healthprobe.Probe
	httpServer *httpserver.Server
	ledger     *allowance.Ledger
	positions  *positions.Manager
	engine     *engine.Engine
	store      storage.Storage
	feed       *feed.Client   // nil when the feed is disabled
	tracker    *chain.Tracker // nil without a wallet address
	engineDone chan error
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}
