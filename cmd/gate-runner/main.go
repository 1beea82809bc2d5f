// gate-runner is the HTTP service that executes runs against local
// gatekeeper processes: it submits jobs, holds the duplex wait, reconciles
// result artifacts, and notifies run outcomes.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gateclient/internal/api"
	"gateclient/internal/config"
	"gateclient/internal/dispatcher"
	"gateclient/internal/gateway"
	"gateclient/internal/health"
	"gateclient/internal/observability"
	"gateclient/internal/runner"
	"gateclient/internal/tool"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg := config.LoadRunnerConfig()
	dispatcherCfg := dispatcher.LoadConfigFromEnv()

	// Resolve the tool registry
	registry := tool.Defaults()
	if cfg.ToolsFile != "" {
		var err error
		registry, err = tool.LoadFile(cfg.ToolsFile)
		if err != nil {
			return err
		}
		slog.Info("Loaded tool overrides", "file", cfg.ToolsFile)
	}
	slog.Info("Tool registry resolved", "tools", registry.Names())

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Create outcome dispatcher
	outcomeDispatcher := dispatcher.NewMemory(dispatcherCfg, metrics)

	// Create the run pipeline
	runService := runner.New(registry, cfg.ScratchDir,
		runner.WithMetrics(metrics),
		runner.WithNotifier(outcomeDispatcher),
		runner.WithClientFactory(func(t tool.Tool) runner.Gateway {
			return gateway.New(t, gateway.WithMetrics(metrics))
		}),
	)

	// Create health checker
	healthChecker := health.NewChecker(registry)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Runner:        runService,
		Registry:      registry,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		Dispatcher:    outcomeDispatcher,
		APIKey:        cfg.APIKey,
	})

	if cfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	// Create API server. Write timeout must outlast the longest duplex wait,
	// so it is disabled; the wait windows bound the handlers instead.
	apiServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 120 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		slog.Info("Starting API server", "port", cfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: mark unready so load balancers stop sending new runs
	healthChecker.SetShuttingDown()

	if cfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
		time.Sleep(cfg.ShutdownDrainWait)
	}

	// Phase 2: graceful shutdown, finish in-flight runs. Long waits are cut
	// off here; the gatekeepers keep their jobs and can be re-queried once
	// the service is back.
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: drain the outcome dispatcher
	slog.Info("Draining outcome dispatcher")
	dispatcherCtx, dispatcherCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dispatcherCancel()
	if err := outcomeDispatcher.Close(dispatcherCtx); err != nil {
		slog.Warn("Dispatcher shutdown error", "error", err)
	}

	stats := outcomeDispatcher.Stats()
	slog.Info("Dispatcher stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	slog.Info("Shutdown complete")
	return nil
}
