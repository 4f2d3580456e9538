// Package app wires the full application: configuration, logging,
// tracing, the learning store, the execution layer and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finsheet/internal/config"
	"finsheet/internal/extractor"
	"finsheet/internal/infrastructure"
	"finsheet/internal/learning"
	"finsheet/internal/middleware"
	"finsheet/internal/operations"
	"finsheet/internal/services"
	transporthttp "finsheet/internal/transport/http"
)

// Application holds the wired components and the HTTP server.
type Application struct {
	cfg      *config.Config
	logger   *slog.Logger
	otel     *infrastructure.OTelProvider
	store    learning.Store
	pool     operations.Executor
	server   *http.Server
	hub      *transporthttp.Hub
}

// NewApplication builds the full dependency graph from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)

	otelProvider, err := infrastructure.InitOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	store, err := learning.NewSQLiteStore(cfg.Learning.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening learning store: %w", err)
	}
	learningSystem := learning.NewSystem(store, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := operations.NewMetrics(registry)

	pool := operations.NewWorkerPool(cfg.Pipeline.Workers, logger)
	broadcaster := operations.NewProgressBroadcaster(logger)
	hub := transporthttp.NewHub(logger)
	broadcaster.Subscribe(hub)

	manager := operations.NewManager(operations.ManagerConfig{
		Logger:           logger,
		Executor:         pool,
		Cache:            operations.NewResultCache(cfg.Pipeline.CacheTTL, cfg.Pipeline.CacheMaxSize),
		Metrics:          metrics,
		Broadcaster:      broadcaster,
		Learning:         learningSystem,
		BalanceMagnitude: cfg.Classifier.BalanceMagnitude,
		ChunkSize:        cfg.Pipeline.ChunkSize,
		MatchThreshold:   cfg.Learning.MatchThreshold,
		Workers:          cfg.Pipeline.Workers,
	})

	service := services.NewImportService(logger, extractor.New(logger), manager, learningSystem)
	handler := transporthttp.NewHandler(logger, service, cfg.Paths.InboxDir)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.StructuredLogger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.SecurityHeaders)
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	router.Use(middleware.Timeout(cfg.Pipeline.ImportTimeout))

	handler.Routes(router)
	router.Get("/ws", hub.ServeWS)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		cfg:    cfg,
		logger: logger,
		otel:   otelProvider,
		store:  store,
		pool:   pool,
		server: server,
		hub:    hub,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *Application) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening",
			slog.String("addr", a.server.Addr),
			slog.String("version", config.AppVersion))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		a.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}

// Shutdown stops the server and releases resources in dependency order.
func (a *Application) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = err
	}
	a.pool.Close()
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.otel.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = err
	}

	a.logger.Info("shutdown complete")
	// Give the log file flush a beat before the process exits.
	time.Sleep(50 * time.Millisecond)
	return firstErr
}
