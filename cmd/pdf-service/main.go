package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/internal/common/config"
	"github.com/edgecomet/articlepdf/internal/common/logger"
	"github.com/edgecomet/articlepdf/internal/common/metricsserver"
	"github.com/edgecomet/articlepdf/internal/common/urlmatch"
	"github.com/edgecomet/articlepdf/internal/pdf/cache"
	"github.com/edgecomet/articlepdf/internal/pdf/cleanup"
	"github.com/edgecomet/articlepdf/internal/pdf/enricher"
	"github.com/edgecomet/articlepdf/internal/pdf/resolver"
	"github.com/edgecomet/articlepdf/internal/pdf/server"
	"github.com/edgecomet/articlepdf/internal/render/chrome"
)

func main() {
	configPath := flag.String("c", "configs/pdf-service.yaml", "path to pdf-service configuration file")
	flag.Parse()

	// Startup logger until the configured one is available
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting PDF service",
		zap.String("config_path", *configPath))

	cfg, err := config.Load(*configPath)
	if err != nil {
		initialLogger.Fatal("Failed to load config", zap.Error(err))
	}

	zapLogger, err := logger.NewLogger(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer func() { _ = zapLogger.Sync() }()

	store, err := cache.Open(cfg.Storage.Path, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open artifact store",
			zap.String("path", cfg.Storage.Path),
			zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	chromeConfig := &chrome.Config{
		PoolSize:      cfg.Chrome.PoolSize,
		ExecPath:      cfg.Chrome.ExecPath,
		RenderTimeout: time.Duration(cfg.Chrome.RenderTimeout),
	}

	renderer, err := chrome.NewRenderer(chromeConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to start renderer", zap.Error(err))
	}

	namespace := cfg.Metrics.Namespace

	var enrichWorker *enricher.Worker
	if cfg.Enricher.Enabled {
		enrichWorker = enricher.NewWorker(
			store,
			renderer,
			time.Duration(cfg.Enricher.Interval),
			zapLogger,
			enricher.NewEnricherMetrics(namespace, zapLogger),
		)
		enrichWorker.Start()
	} else {
		zapLogger.Info("Enrichment worker disabled")
	}

	var cleanupWorker *cleanup.Worker
	if cfg.Cleanup.Enabled {
		cleanupWorker = cleanup.NewWorker(
			store,
			time.Duration(cfg.Cleanup.Interval),
			time.Duration(cfg.Cleanup.MaxAge),
			zapLogger,
			cleanup.NewCleanupMetrics(namespace, zapLogger),
		)
		cleanupWorker.Start()
	} else {
		zapLogger.Info("Cleanup worker disabled")
	}

	metricsServer, err := metricsserver.StartMetricsServer(
		cfg.Metrics.Enabled,
		cfg.Metrics.Listen,
		cfg.Metrics.Path,
		prometheus.DefaultGatherer,
		zapLogger,
	)
	if err != nil {
		zapLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	allowedHosts, err := urlmatch.Compile(cfg.Server.AllowedHosts)
	if err != nil {
		zapLogger.Fatal("Failed to compile host allowlist", zap.Error(err))
	}

	apiServer := server.NewServer(
		cfg.Server.AuthToken,
		resolver.NewResolver(store, renderer, zapLogger),
		store,
		allowedHosts,
		time.Duration(cfg.Cleanup.MaxAge),
		time.Duration(cfg.Server.Timeout),
		zapLogger,
		server.NewServerMetrics(namespace, zapLogger),
	)

	go func() {
		if err := apiServer.Start(cfg.Server.Listen); err != nil {
			zapLogger.Fatal("API server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("PDF service started",
		zap.String("listen", cfg.Server.Listen))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down PDF service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests first, then the background workers, then the
	// browser they render with.
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown API server gracefully", zap.Error(err))
	}

	if enrichWorker != nil {
		enrichWorker.Shutdown()
	}
	if cleanupWorker != nil {
		cleanupWorker.Shutdown()
	}

	if err := renderer.Close(); err != nil {
		zapLogger.Error("Failed to terminate browser", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown metrics server gracefully", zap.Error(err))
		}
	}

	zapLogger.Info("PDF service stopped")
}
