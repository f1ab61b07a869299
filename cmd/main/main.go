package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/app"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/healthcheck"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/internal/usecase"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Meta Lead Sync worker",
		zap.String("environment", cfg.Environment),
		zap.String("nats_url", cfg.NATS.URL),
		zap.String("graph_version", cfg.Graph.Version),
		zap.Bool("scheduler_enabled", cfg.Sync.SchedulerEnabled),
	)

	a, err := app.New(cfg, logger.Log, app.Options{ConnectNATS: true, ClientName: "meta-lead-sync"})
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
	}

	processor := usecase.NewProcessor(a.SyncService, a.JS, a.Exhausted, cfg)
	if err := processor.Setup(); err != nil {
		logger.Log.Fatal("Failed to set up processor", zap.Error(err))
	}

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)
	healthServer.AddCheck("postgres", a.Repo)
	healthServer.AddCheck("nats", a.JS)

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	// Start processor
	if err := processor.Start(); err != nil {
		logger.Log.Fatal("Failed to start processor", zap.Error(err))
	}

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	// The consumer stops first so no new runs are queued while the pool drains.
	shutdown("trigger processor", processor.Stop)

	var wg sync.WaitGroup
	wg.Add(2)

	// the deferred Done also runs when fn panics
	utils.SafeGo(func() {
		defer wg.Done()
		shutdown("health check server", func() {
			if err := healthServer.Stop(shutdownCtx); err != nil {
				logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
			}
		})
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
	})

	// Close releases the sync worker pool, then NATS and Postgres
	utils.SafeGo(func() {
		defer wg.Done()
		shutdown("sync worker and connections", func() {
			a.Close(shutdownCtx)
		})
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
	})

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Meta Lead Sync worker shutdown complete")
}

func shutdown(component string, stop func()) {
	logger.Log.Info("[shutdown] Stopping " + component)
	start := time.Now()
	stop()
	logger.Log.Info("[shutdown] Stopped "+component, zap.Duration("duration", time.Since(start)))
}
