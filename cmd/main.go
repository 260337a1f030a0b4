package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/http/api"
	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
	app "github.com/ucmao/parse-ucmao-backend/internal/app"
	"github.com/ucmao/parse-ucmao-backend/internal/config"
	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
	"github.com/ucmao/parse-ucmao-backend/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []app.Option{
		app.WithLogger(loggerInstance),
		app.WithActionWeights(cfg.ActionWeights),
		app.WithPlatformNames(cfg.PlatformNames),
		app.WithMaxQueryLimit(cfg.MaxQueryLimit),
		app.WithDefaultStorageLimit(cfg.DefaultStorageLimit),
	}

	if cfg.Backend == config.BackendPostgres {
		db, err := repository.Open(ctx, cfg.DSN())
		if err != nil {
			os.Stderr.WriteString("failed to open database: " + err.Error() + "\n")
			return
		}
		defer db.Close()

		if err := repository.RunMigrations(ctx, db); err != nil {
			os.Stderr.WriteString("failed to run migrations: " + err.Error() + "\n")
			return
		}

		catalog := repository.NewPostgresCatalog(db, loggerInstance.Named("catalog"))
		ledger := repository.NewPostgresLedger(db, loggerInstance.Named("ledger"),
			repository.WithLedgerCapacity(cfg.DefaultStorageLimit))
		opts = append(opts,
			app.WithStores(catalog, ledger, ledger),
			app.WithQueryLog(catalog),
			app.WithScoreSource(repository.NewPostgresScoreConfig(db)),
		)
	}

	// Create and start the service with configuration options
	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// startServiceMetricsUpdater refreshes the service-level gauges on the
// interval configured on the metrics manager.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the gauges as a side effect.
			_ = svc.GetStats(ctx)
		}
	}
}
