// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsamuelsen/go-ambient/internal/adapters/clients"
	"github.com/jsamuelsen/go-ambient/internal/adapters/http"
	"github.com/jsamuelsen/go-ambient/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-ambient/internal/adapters/storage"
	"github.com/jsamuelsen/go-ambient/internal/app"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/config"
	"github.com/jsamuelsen/go-ambient/internal/platform/logging"
	"github.com/jsamuelsen/go-ambient/internal/platform/poller"
	"github.com/jsamuelsen/go-ambient/internal/platform/telemetry"
	"github.com/jsamuelsen/go-ambient/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging; every record carries the ambient ids of the
	// goroutine that logs it
	logger := logging.WithAmbient(logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}), domain.TraceIDs, domain.RequestIDs, domain.CorrelationIDs, domain.Tenants, domain.Deadlines)
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Start the poll driver for background jobs
	driver := poller.New(poller.Config{
		Size:         cfg.Worker.Size,
		QueueSize:    cfg.Worker.QueueSize,
		PollInterval: cfg.Worker.PollInterval,
	}, logger)

	// 6. Create health registry
	healthRegistry := ports.NewHealthRegistry()

	if err := healthRegistry.Register(driver); err != nil {
		return fmt.Errorf("registering poller health check: %w", err)
	}

	// 7. Create HTTP client for the downstream service
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Downstream.BaseURL,
		ServiceName: cfg.Downstream.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.Circuit,
		Transport:   cfg.Client.Transport,
		Headers:     cfg.Ambient,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	downstream := clients.NewDownstream(httpClient)

	if err := healthRegistry.Register(downstream); err != nil {
		return fmt.Errorf("registering downstream health check: %w", err)
	}

	// 8. Create job service (application layer)
	jobService := app.NewJobService(app.JobServiceConfig{
		Driver:     driver,
		Store:      storage.NewMemoryJobStore(),
		Downstream: downstream,
		Deadline:   cfg.Ambient.JobDeadline,
		Logger:     logger,
	})

	// 9. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, handlers.NewMetricsRegistry(driver))

	// 10. Create HTTP server
	server := http.New(&cfg.Server, logger)

	// 11. Setup router with all middleware and routes
	routerCfg := http.NewDefaultRouterConfig(logger, &cfg.App, &cfg.Ambient, healthHandler)
	routerCfg.JobHandler = handlers.NewJobHandler(jobService)
	routerCfg.Timeout = cfg.Server.RequestTimeout
	http.SetupRouter(server.Engine(), routerCfg)

	// 12. Jobs still pending once requests have drained are cancelled
	server.OnShutdown(func() {
		pending := driver.Active()
		driver.Stop()
		logger.Info("poll driver stopped", slog.Int("jobs_cancelled", pending))
	})

	// 13. Start server (non-blocking)
	serverErr := server.Start()

	// 14. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// Shutting down the server also runs its shutdown hooks.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Create shutdown context with timeout once shutdown begins
	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, shutdownTimeout)
	}

	select {
	case err := <-serverErr:
		sctx, cancel := shutdownCtx()
		defer cancel()

		_ = server.Shutdown(sctx)
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	sctx, cancel := shutdownCtx()
	defer cancel()

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
