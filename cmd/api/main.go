package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nutriplan/api/internal/cache"
	"nutriplan/api/internal/config"
	"nutriplan/api/internal/database"
	"nutriplan/api/internal/handlers"
	"nutriplan/api/internal/jobs"
	"nutriplan/api/internal/kv"
	"nutriplan/api/internal/log"
	"nutriplan/api/internal/recipes"
	"nutriplan/api/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	var (
		persistent  kv.Store
		dbPool      *pgxpool.Pool
		redisClient *redis.Client
	)

	switch cfg.Storage.Driver {
	case "postgres":
		dbPool, err = database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		persistent, err = kv.NewPostgresStore(ctx, dbPool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init postgres store")
		}
	case "redis":
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		persistent = kv.NewRedisStore(redisClient)
	default:
		logger.Fatal().Str("driver", cfg.Storage.Driver).Msg("unknown storage driver")
	}

	// the ephemeral session scope lives and dies with this process
	ephemeral := kv.NewMemoryStore()

	recipeList, err := recipes.Bundled()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load bundled recipes")
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, persistent, ephemeral, recipeList, dbPool, redisClient)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(handlerSet.Cache(), handlerSet.Sessions(), logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(
	logger zerolog.Logger,
	srv *server.HTTPServer,
	scheduler *jobs.Scheduler,
	dbPool *pgxpool.Pool,
	redisClient *redis.Client,
) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	if dbPool != nil {
		dbPool.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
