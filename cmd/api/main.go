package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-billing/internal/api/router"
	"github.com/wolfman30/clinic-billing/internal/billing"
	appconfig "github.com/wolfman30/clinic-billing/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-billing/internal/http/middleware"
	"github.com/wolfman30/clinic-billing/internal/observability/metrics"
	"github.com/wolfman30/clinic-billing/internal/records"
	"github.com/wolfman30/clinic-billing/internal/reporting"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic billing API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; every /api request will be rejected")
	}

	ctx := context.Background()
	pool, err := connectPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open user directory", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, engineMetrics := setupMetrics(prometheus.NewRegistry())

	// Initialize services and handlers
	store := records.NewStore(pool)
	fetcher := records.NewFetcher(store, store, records.NewSQLUserDirectory(db), logger)
	billingService := billing.NewService(fetcher, engineMetrics, logger, cfg.MaxPageSize)
	reportService := reporting.NewService(fetcher, engineMetrics, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		BillingHandler:     billing.NewHandler(billingService, logger),
		ReportHandler:      reporting.NewHandler(reportService, logger),
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout:     cfg.RequestTimeout,
		Limiter:            buildLimiter(cfg, redisClient),
		Metrics:            engineMetrics,
		MetricsHandler:     metricsHandler,
		HealthCheck:        pool.Ping,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics(reg *prometheus.Registry) (http.Handler, *metrics.EngineMetrics) {
	m := metrics.NewEngineMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func connectPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	if cfg.DBMinConns >= 0 {
		poolCfg.MinConns = int32(cfg.DBMinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	logger.Info("connected to postgres", "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// connectRedis returns nil when redis is not configured or unreachable.
func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set; using in-process rate limiting")
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable; using in-process rate limiting", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return client
}

func buildLimiter(cfg *appconfig.Config, client *redis.Client) httpmiddleware.Limiter {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	if client != nil {
		return httpmiddleware.NewRedisLimiter(client, cfg.RateLimitPerMinute, time.Minute)
	}
	return httpmiddleware.NewLocalLimiter(float64(cfg.RateLimitPerMinute)/60, cfg.RateLimitPerMinute)
}
