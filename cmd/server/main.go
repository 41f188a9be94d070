// Package main is the entrypoint for the PixelRelay API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kiranshivaraju/pixelrelay/internal/api"
	"github.com/kiranshivaraju/pixelrelay/internal/api/handler"
	mw "github.com/kiranshivaraju/pixelrelay/internal/api/middleware"
	"github.com/kiranshivaraju/pixelrelay/internal/cache"
	"github.com/kiranshivaraju/pixelrelay/internal/config"
	"github.com/kiranshivaraju/pixelrelay/internal/generation"
	"github.com/kiranshivaraju/pixelrelay/internal/ingest"
	"github.com/kiranshivaraju/pixelrelay/internal/metrics"
	"github.com/kiranshivaraju/pixelrelay/internal/replicate"
	"github.com/kiranshivaraju/pixelrelay/internal/vision"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Optional .env, then config; fail fast on invalid config
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "rate_limit_per_minute", cfg.RateLimit.PerMinute)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Build services and router
	router, cleanup, err := newRouter(ctx, cfg, metrics.NewCollector("pixelrelay"))
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newRouter wires every service from cfg. The returned cleanup releases the
// Redis connection when one was opened.
func newRouter(ctx context.Context, cfg *config.Config, m *metrics.Collector) (http.Handler, func(), error) {
	cleanup := func() {}

	// Optional Redis for shared rate-limit counters
	var redisCache *cache.RedisCache
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis cache: %w", err)
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")
		redisCache = rc
		cleanup = func() { rc.Close() }
	}

	var rateLimit *mw.RateLimit
	if cfg.RateLimit.PerMinute > 0 {
		var limiter mw.Limiter = mw.NewLocalLimiter(cfg.RateLimit.PerMinute)
		if redisCache != nil {
			limiter = mw.NewRedisLimiter(redisCache, cfg.RateLimit.PerMinute)
		}
		rateLimit = mw.NewRateLimit(limiter, m)
		slog.Info("rate limiting enabled", "backend", limiter.Backend(), "per_minute", cfg.RateLimit.PerMinute)
	}

	// Upstream clients, one instrumented http.Client per provider
	repClient := replicate.NewHTTPClient(cfg.Replicate.BaseURL, cfg.Replicate.APIToken,
		m.InstrumentClient(replicate.ProviderName, nil, cfg.Replicate.Timeout))
	registry := vision.NewRegistry(cfg.Vision, func(provider string) *http.Client {
		return m.InstrumentClient(provider, nil, cfg.Vision.Timeout)
	})
	fetcher := ingest.NewFetcher(cfg.Fetch, m.InstrumentClient(ingest.ProviderName, nil, cfg.Fetch.Timeout))

	providers := []handler.CredentialedProvider{repClient}
	for _, p := range registry.Providers() {
		providers = append(providers, p)
		if !p.HasCredentials() {
			slog.Warn("vision provider has no credentials", "provider", p.Name())
		}
	}
	if !repClient.HasCredentials() {
		slog.Warn("replicate token not set", "env", generation.TokenEnv)
	}

	services := map[string]handler.Pinger{"redis": nil}
	if redisCache != nil {
		services["redis"] = redisCache
	}

	gen := generation.NewService(repClient)
	router := api.NewRouter(api.Dependencies{
		RateLimit: rateLimit,
		Metrics:   m,

		HealthHandler:     handler.NewHealthHandler(services, providers),
		AnalyzeHandler:    handler.NewAnalyzeHandler(vision.NewService(registry)),
		GenerateHandler:   handler.NewGenerateHandler(gen),
		StatusHandler:     handler.NewStatusHandler(gen),
		FetchImageHandler: handler.NewFetchImageHandler(fetcher),
	})
	return router, cleanup, nil
}

// writeTimeout leaves room for the slowest upstream call.
func writeTimeout(cfg *config.Config) time.Duration {
	d := cfg.Vision.Timeout
	for _, t := range []time.Duration{cfg.Replicate.Timeout, cfg.Fetch.Timeout} {
		if t > d {
			d = t
		}
	}
	return d + 10*time.Second
}
