package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Yardman-Mzansi/potholematic/cmd/mainconfig"
	"github.com/Yardman-Mzansi/potholematic/internal/api/router"
	"github.com/Yardman-Mzansi/potholematic/internal/app/bootstrap"
	appconfig "github.com/Yardman-Mzansi/potholematic/internal/config"
	"github.com/Yardman-Mzansi/potholematic/internal/http/handlers"
	"github.com/Yardman-Mzansi/potholematic/internal/messaging"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

const dedupPurgeInterval = time.Hour

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting potholematic API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := openDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	registry, metricsHandler := setupMetrics()
	deps.Registerer = registry

	rt, err := bootstrap.BuildRuntime(ctx, cfg, deps, logger)
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}

	janitorDone := bootstrap.StartDedupJanitor(ctx, rt.Purger, cfg.DedupTTL, dedupPurgeInterval, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      buildRouter(cfg, rt, metricsHandler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stop()
	<-janitorDone

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// openDeps opens every long-lived connection the configured backends need.
// The returned cleanup closes them in reverse order.
func openDeps(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (bootstrap.Deps, func(), error) {
	var deps bootstrap.Deps
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.StoreBackend == appconfig.BackendPostgres || strings.TrimSpace(cfg.DatabaseURL) != "" {
		deps.Pool = connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if deps.Pool != nil {
			closers = append(closers, deps.Pool.Close)
		}
		db, err := openSQLDB(cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return deps, nil, err
		}
		if db != nil {
			deps.SQLDB = db
			closers = append(closers, func() { _ = db.Close() })
		}
	}

	if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
		deps.Redis = client
		closers = append(closers, func() { _ = client.Close() })
	}

	if cfg.UsesAWS() {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			cleanup()
			return deps, nil, fmt.Errorf("load aws config: %w", err)
		}
		deps.AWS = mainconfig.NewAWSClients(awsCfg, cfg)
	}

	return deps, cleanup, nil
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// openSQLDB opens the database/sql handle used by the report repository.
func openSQLDB(url string) (*sql.DB, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open sql db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func buildRouter(cfg *appconfig.Config, rt *bootstrap.Runtime, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	messagingHandler := messaging.NewHandler(messaging.HandlerConfig{
		WebhookSecret: cfg.TwilioWebhookSecret,
		PublicBaseURL: cfg.PublicBaseURL,
		Dispatcher:    rt.Dispatcher,
		Deduper:       rt.Deduper,
		Metrics:       rt.Metrics,
		Logger:        logger,
	})

	var adminReports *handlers.AdminReportsHandler
	if strings.TrimSpace(cfg.AdminJWTSecret) != "" {
		adminReports = handlers.NewAdminReportsHandler(rt.Reports, logger)
	}

	return router.New(&router.Config{
		Logger:           logger,
		MessagingHandler: messagingHandler,
		AdminReports:     adminReports,
		AdminAuthSecret:  cfg.AdminJWTSecret,
		MetricsHandler:   metricsHandler,
	})
}
