// Package httpserver exposes the control plane: Prometheus metrics, health
// probes, read-only state endpoints for the dashboard, and the permission
// grant/revoke operations. Every mutation of trading state still flows
// through the engine; the API only installs or revokes spending permissions
// and reports what the agent is doing.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/pkg/healthprobe"
)

// Server provides HTTP endpoints for metrics, health checks, and the agent API.
type Server struct {
	server *http.Server
	logger *zap.Logger
	probe  *healthprobe.Probe
}

// Config holds server configuration. Engine, Ledger, Positions, and Feed are
// optional; routes backed by an absent component are not mounted.
type Config struct {
	Port      string
	Logger    *zap.Logger
	Probe     *healthprobe.Probe
	Engine    EngineSource
	Ledger    PermissionStore
	Positions PositionReader
	Feed      FeedReader
}

// New creates a new HTTP server.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Probe == nil {
		return nil, fmt.Errorf("probe cannot be nil")
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("port cannot be empty")
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.Probe.Liveness())
	r.Get("/ready", cfg.Probe.Readiness())

	// Agent API endpoints (per provided component)
	h := &apiHandler{
		engine:    cfg.Engine,
		ledger:    cfg.Ledger,
		positions: cfg.Positions,
		feed:      cfg.Feed,
		logger:    cfg.Logger,
	}

	if cfg.Engine != nil {
		r.Get("/api/status", h.handleStatus)
		r.Get("/api/markets", h.handleMarkets)
		r.Get("/api/signals", h.handleSignals)
	}
	if cfg.Positions != nil {
		r.Get("/api/positions", h.handlePositions)
	}
	if cfg.Ledger != nil && cfg.Positions != nil {
		r.Get("/api/stats", h.handleStats)
	}
	if cfg.Ledger != nil {
		r.Post("/api/permission", h.handlePermission)
		r.Post("/api/permission/revoke", h.handleRevoke)
	}
	r.Get("/api/feed", h.handleFeed)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server: server,
		logger: cfg.Logger,
		probe:  cfg.Probe,
	}, nil
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
