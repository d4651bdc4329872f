package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/brojonat/rafflebandz/service/archive"
	"github.com/brojonat/rafflebandz/service/config"
	"github.com/brojonat/rafflebandz/service/db"
	"github.com/brojonat/rafflebandz/service/metrics"
	natspkg "github.com/brojonat/rafflebandz/service/nats"
	"github.com/brojonat/rafflebandz/service/report"
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
	"github.com/brojonat/rafflebandz/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	logger.Info("Prometheus metrics collector initialized")

	// Start metrics HTTP server
	metricsAddr := getEnv("METRICS_ADDR", ":9091")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Optional snapshot store
	var store archive.Store
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		s := db.NewStore(dbPool, metricsCollector)
		if err := s.EnsureSchema(ctx); err != nil {
			logger.Error("failed to apply database schema", "error", err)
			os.Exit(1)
		}
		store = s
		logger.Info("connected to database")
	}

	// Optional NATS publisher
	var publisher natspkg.Publisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, logger, metricsCollector)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	// Indexer client
	opts := []algorand.ClientOption{algorand.WithMetrics(metricsCollector)}
	if cfg.IndexerAPIToken != "" {
		opts = append(opts, algorand.WithAPIToken(cfg.IndexerAPIToken))
	}
	if cfg.IndexerPageLimit > 0 {
		opts = append(opts, algorand.WithPageLimit(cfg.IndexerPageLimit))
	}
	if cfg.IndexerTimeout > 0 {
		opts = append(opts, algorand.WithHTTPClient(&http.Client{Timeout: cfg.IndexerTimeout}))
	}
	indexer := algorand.NewClient(cfg.IndexerURL, logger, opts...)
	logger.Info("initialized indexer client", "url", cfg.IndexerURL)

	service := snapshot.NewService(indexer, snapshot.Config{
		Issuer:      cfg.IssuerAddress,
		Excluded:    cfg.ExcludedAddresses,
		Concurrency: cfg.AssetConcurrency,
	}, logger, metricsCollector)

	writer := report.NewWriter(cfg.SnapshotDir, cfg.ReportPrefix, logger, metricsCollector)
	archiver := archive.NewArchiver(writer, slots.NewAllocator(cfg.MaxSlots), store, publisher, logger)

	// Initialize Temporal worker
	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Service:           service,
		Archiver:          archiver,
		Metrics:           metricsCollector,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"indexer_url", cfg.IndexerURL,
		"snapshot_dir", cfg.SnapshotDir,
		"database", store != nil,
		"nats", publisher != nil,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		worker.Stop()
		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// getEnv returns the value of an environment variable or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
