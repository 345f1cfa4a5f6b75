package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/logpipe/internal/adapter/api"
	"github.com/user/logpipe/internal/adapter/api/handler"
	"github.com/user/logpipe/internal/adapter/metrics"
	"github.com/user/logpipe/internal/adapter/repository/filestore"
	"github.com/user/logpipe/internal/pkg/config"
	"github.com/user/logpipe/internal/pkg/logger"
	"github.com/user/logpipe/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewServerMetrics()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Rotating File Store ---
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	store, err := filestore.New(cfg.LogDir, cfg.MaxFileSize, retention, logger, m)
	if err != nil {
		logger.Error("failed to initialize log store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	go store.StartRetentionSweep(ctx, cfg.RetentionSweepInterval)

	// --- Fan-out, Alerting, Use Cases ---
	broker := handler.NewStreamBroker(logger, m)
	alerts := usecase.NewAlertMonitor(usecase.AlertThresholds{
		Errors:   cfg.AlertErrorThreshold,
		Warnings: cfg.AlertWarnThreshold,
		Window:   cfg.AlertWindow,
	}, broker, logger)

	ingestUseCase := usecase.NewIngestLogUseCase(store, broker, alerts, cfg.DefaultSource, logger)
	queryUseCase := usecase.NewQueryLogsUseCase(store, logger)

	ingestHandler := handler.NewIngestHandler(ingestUseCase, logger, m, cfg.MaxEventSize)
	queryHandler := handler.NewQueryHandler(queryUseCase, logger)

	// --- Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Log Server ---
	router := api.NewRouter(cfg, logger, ingestHandler, queryHandler, broker)
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: the SSE stream endpoint holds connections open.
	}

	go func() {
		logger.Info("starting log server", "addr", server.Addr, "log_dir", cfg.LogDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("log server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("log server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
