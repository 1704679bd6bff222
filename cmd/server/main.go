// Package main is the entry point for the stockbridge API server.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stockbridge/internal/config"
	"stockbridge/internal/domain/documents"
	"stockbridge/internal/domain/owner"
	"stockbridge/internal/domain/warehouse"
	"stockbridge/internal/infrastructure/crm"
	v1 "stockbridge/internal/infrastructure/http/v1"
	"stockbridge/internal/infrastructure/metrics"
	"stockbridge/internal/infrastructure/ratelimit"
	"stockbridge/internal/infrastructure/secret"
	"stockbridge/internal/infrastructure/storage/postgres"
	"stockbridge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer stop()
	log.Infow("starting stockbridge server", "env", cfg.App.Env)

	// --- Endpoint vault ---
	var (
		store     secret.Store = secret.NewMemoryStore()
		vaultOpts []secret.VaultOption
	)
	if cfg.Database.URL != "" {
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()

		settings := postgres.NewSettingsStore(pool)
		if err := settings.EnsureSchema(ctx); err != nil {
			log.Fatalw("failed to prepare settings table", "error", err)
		}
		store = settings
		vaultOpts = append(vaultOpts, secret.WithCacheTTL(cfg.Database.EndpointCacheTTL))
		log.Infow("sealed endpoint stored in postgres", "cache_ttl", cfg.Database.EndpointCacheTTL)
	}
	vault := secret.NewVault(store, vaultOpts...)

	// --- Setup rate limiter ---
	var limiter ratelimit.Limiter
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalw("invalid redis url", "error", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalw("failed to ping redis", "error", err)
		}
		limiter = ratelimit.NewRedisWindow(client, cfg.Setup.RateLimitRequests, cfg.Setup.RateLimitWindow)
		log.Info("setup rate limiter backed by redis")
	} else {
		mem := ratelimit.NewMemoryWindow(cfg.Setup.RateLimitRequests, cfg.Setup.RateLimitWindow)
		go mem.Run(ctx, cfg.Setup.RateLimitWindow)
		limiter = mem
	}

	// --- Pipeline ---
	m := metrics.New()
	client := crm.NewClient(vault, crm.ClientConfig{
		Timeout:         cfg.CRM.Timeout,
		BreakerEnabled:  cfg.CRM.BreakerEnabled,
		BreakerFailures: cfg.CRM.BreakerFailures,
		BreakerTimeout:  cfg.CRM.BreakerTimeout,
	}, crm.WithRecorder(m))
	gateway := crm.NewGateway(client)

	service := documents.NewService(
		gateway,
		warehouse.NewResolver(gateway),
		owner.NewResolver(cfg.Document.DefaultSmartProcessTypeID),
		cfg.Pipeline(),
		documents.WithRecorder(m),
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		Documents:    service,
		Vault:        vault,
		SetupLimiter: limiter,
		Metrics:      m,
		Development:  cfg.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CRM.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	stop()

	log.Info("server stopped")
}
