package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/greglum/map-project/internal/api"
	"github.com/greglum/map-project/internal/cache"
	"github.com/greglum/map-project/internal/cache/memcache"
	"github.com/greglum/map-project/internal/cache/redisstore"
	"github.com/greglum/map-project/internal/core/config"
	"github.com/greglum/map-project/internal/core/observability"
	"github.com/greglum/map-project/internal/core/service"
	"github.com/greglum/map-project/internal/invalidation/kafkaconsumer"
	mylog "github.com/greglum/map-project/internal/logger"
	"github.com/greglum/map-project/internal/store/pgstore"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	zl := mylog.Build(mylog.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "server",
	}, nil)
	logger := mylog.NewSlog(&zl)
	logger.Info("starting server", "addr", cfg.Addr, "version", Version)
	observability.ExposeBuildInfo(Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	backend, err := pgstore.New(pool)
	if err != nil {
		logger.Error("backend init failed", "err", err)
		os.Exit(1)
	}
	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := backend.EnsureSchema(schemaCtx); err != nil {
		cancel()
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}
	cancel()

	var store cache.Interface
	switch cfg.CacheDriver {
	case "redis":
		rc, err := redisstore.New(ctx, cfg.RedisAddr, cfg.CacheOpTimeout)
		if err != nil {
			logger.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer func() { _ = rc.Close() }()
		store = rc
	default:
		store = memcache.New(cfg.MemCacheSize, cfg.HierarchyTTL+cfg.TTLJitter)
	}
	logger.Info("cache ready", "driver", cfg.CacheDriver)

	svc := service.New(logger, backend, store,
		service.WithPrecision(cfg.GeohashPrecision),
		service.WithDefaultLimit(cfg.DefaultLimit),
		service.WithTTLs(cfg.ListTTL, cfg.FeatureTTL, cfg.HierarchyTTL),
		service.WithJitter(cfg.TTLJitter),
	)

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(
			kafkaconsumer.NewConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			logger, store)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("invalidation consumer failed", "err", err)
			}
		}()
	}

	router := api.New(logger, svc)
	if err := api.Run(ctx, cfg.Addr, logger, router); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
