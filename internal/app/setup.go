package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/internal/allowance"
	"github.com/oddslab/parity-arb/internal/detector"
	"github.com/oddslab/parity-arb/internal/engine"
	"github.com/oddslab/parity-arb/internal/execution"
	"github.com/oddslab/parity-arb/internal/feed"
	"github.com/oddslab/parity-arb/internal/fees"
	"github.com/oddslab/parity-arb/internal/marketdata"
	"github.com/oddslab/parity-arb/internal/positions"
	"github.com/oddslab/parity-arb/internal/storage"
	"github.com/oddslab/parity-arb/pkg/cache"
	"github.com/oddslab/parity-arb/pkg/chain"
	"github.com/oddslab/parity-arb/pkg/config"
	"github.com/oddslab/parity-arb/pkg/healthprobe"
	"github.com/oddslab/parity-arb/pkg/httpserver"
)

// New creates the agent with every component wired in dependency order.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	probe := healthprobe.New()

	metaCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	markets, err := setupMarketData(cfg, logger, metaCache)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup market data: %w", err)
	}

	feeModel := fees.NewModel(cfg.TakerFeeBps)
	calibrator := fees.NewCalibrator()

	ledger, err := allowance.New(&allowance.Config{Logger: logger})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup ledger: %w", err)
	}

	posManager, err := setupPositions(cfg, logger, feeModel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup positions: %w", err)
	}

	parityDetector, err := setupDetector(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup detector: %w", err)
	}

	simulator, err := setupSimulator(cfg, logger, feeModel, ledger, calibrator)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup simulator: %w", err)
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	eng, err := setupEngine(cfg, logger, markets, parityDetector, simulator, ledger, posManager, store, calibrator, feeModel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup engine: %w", err)
	}

	feedClient, err := setupFeed(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup feed: %w", err)
	}

	tracker, err := setupTracker(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup tracker: %w", err)
	}

	httpServer, err := setupHTTPServer(cfg, logger, probe, eng, ledger, posManager, feedClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup http server: %w", err)
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		probe:      probe,
		httpServer: httpServer,
		ledger:     ledger,
		positions:  posManager,
		engine:     eng,
		store:      store,
		feed:       feedClient,
		tracker:    tracker,
		engineDone: make(chan error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupMarketData(cfg *config.Config, logger *zap.Logger, metaCache cache.Cache) (*marketdata.Client, error) {
	return marketdata.New(&marketdata.Config{
		GammaURL:           cfg.GammaAPIURL,
		CLOBURL:            cfg.CLOBAPIURL,
		MarketLimit:        cfg.MarketLimit,
		RateLimitRPS:       cfg.HTTPRateLimitRPS,
		RateLimitBurst:     cfg.HTTPRateLimitBurst,
		HydrateConcurrency: cfg.HydrateConcurrency,
		Metadata:           marketdata.NewMetadataCache(metaCache),
		Logger:             logger,
	})
}

func setupPositions(cfg *config.Config, logger *zap.Logger, feeModel fees.Model) (*positions.Manager, error) {
	return positions.New(&positions.Config{
		ProfitTargetSpread: cfg.ProfitTargetSpread,
		StopLossSpread:     cfg.StopLossSpread,
		MaxHold:            cfg.PositionTimeout,
		FeeModel:           feeModel,
		Logger:             logger,
	})
}

func setupDetector(cfg *config.Config, logger *zap.Logger) (*detector.Detector, error) {
	return detector.New(&detector.Config{
		MinSpreadThreshold: cfg.MinSpreadThreshold,
		MinProfitThreshold: cfg.MinProfitThreshold,
		Logger:             logger,
	})
}

func setupSimulator(
	cfg *config.Config,
	logger *zap.Logger,
	feeModel fees.Model,
	ledger *allowance.Ledger,
	calibrator *fees.Calibrator,
) (*execution.Simulator, error) {
	return execution.New(&execution.Config{
		LatencyMean:         cfg.LatencyMean,
		AdverseSelectionStd: cfg.AdverseSelectionStd,
		FillRatioMean:       cfg.FillRatioMean,
		FillRatioStd:        cfg.FillRatioStd,
		FeeModel:            feeModel,
		Ledger:              ledger,
		Calibrator:          calibrator,
		Logger:              logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			URL:    cfg.DatabaseURL,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupEngine(
	cfg *config.Config,
	logger *zap.Logger,
	markets *marketdata.Client,
	parityDetector *detector.Detector,
	simulator *execution.Simulator,
	ledger *allowance.Ledger,
	posManager *positions.Manager,
	store storage.Storage,
	calibrator *fees.Calibrator,
	feeModel fees.Model,
) (*engine.Engine, error) {
	return engine.New(&engine.Config{
		Markets:   markets,
		Detector:  parityDetector,
		Simulator: simulator,
		Ledger:    ledger,
		Strategy: allowance.Strategy{
			ConservativeThreshold: cfg.ConservativeThreshold,
			AggressiveThreshold:   cfg.AggressiveThreshold,
			ConservativeMinEdge:   cfg.ConservativeMinEdge,
			NormalMinEdge:         cfg.NormalMinEdge,
			AggressiveMinEdge:     cfg.AggressiveMinEdge,
		},
		Positions:              posManager,
		Storage:                store,
		Calibrator:             calibrator,
		FeeModel:               feeModel,
		TradeSize:              cfg.TradeSize,
		PollInterval:           cfg.PollInterval,
		MaxDataDelay:           cfg.MaxDataDelay,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		SafeModeCooldown:       cfg.SafeModeCooldown,
		Logger:                 logger,
	})
}

func setupFeed(cfg *config.Config, logger *zap.Logger) (*feed.Client, error) {
	if !cfg.FeedEnabled {
		logger.Info("feed-disabled")
		return nil, nil
	}

	return feed.New(&feed.Config{
		URL:    cfg.WSURL,
		Logger: logger,
	})
}

func setupTracker(cfg *config.Config, logger *zap.Logger) (*chain.Tracker, error) {
	if cfg.WalletAddress == "" {
		return nil, nil
	}
	if !common.IsHexAddress(cfg.WalletAddress) {
		return nil, fmt.Errorf("invalid wallet address: %s", cfg.WalletAddress)
	}

	return chain.New(&chain.Config{
		RPCURL:       cfg.PolygonRPCURL,
		Address:      common.HexToAddress(cfg.WalletAddress),
		PollInterval: cfg.BalancePollInterval,
		Logger:       logger,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	probe *healthprobe.Probe,
	eng *engine.Engine,
	ledger *allowance.Ledger,
	posManager *positions.Manager,
	feedClient *feed.Client,
) (*httpserver.Server, error) {
	serverCfg := &httpserver.Config{
		Port:      cfg.HTTPPort,
		Logger:    logger,
		Probe:     probe,
		Engine:    eng,
		Ledger:    ledger,
		Positions: posManager,
	}
	// A nil *feed.Client must not become a non-nil interface value.
	if feedClient != nil {
		serverCfg.Feed = feedClient
	}

	return httpserver.New(serverCfg)
}

// grantDuration converts the configured day count to a duration.
func grantDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
