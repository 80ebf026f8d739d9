package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/k1rl3s/chess-bot-go/internal/config"
	"github.com/k1rl3s/chess-bot-go/internal/engineapi"
	"github.com/k1rl3s/chess-bot-go/internal/obslog"
	"github.com/k1rl3s/chess-bot-go/internal/service/cache"
	"github.com/k1rl3s/chess-bot-go/internal/service/game"
	"github.com/k1rl3s/chess-bot-go/internal/service/rank"
	"github.com/k1rl3s/chess-bot-go/internal/service/user"
	"github.com/k1rl3s/chess-bot-go/internal/store"
	"github.com/k1rl3s/chess-bot-go/internal/transport/httpapi"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	st, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	var boardCache rank.Cache
	if cfg.RedisURL != "" {
		c, err := cache.New(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis init failed", zap.Error(err))
		}
		defer func() { _ = c.Close() }()
		boardCache = c
	} else {
		logger.Warn("REDIS_URL not set, leaderboard cache disabled")
	}

	engine := engineapi.NewClient(cfg.EngineAPIURL,
		engineapi.WithTimeout(cfg.EngineTimeout),
		engineapi.WithRetry(cfg.EngineRetries),
	)

	users, err := user.NewService(st, engine, logger)
	if err != nil {
		logger.Fatal("user service init failed", zap.Error(err))
	}
	games, err := game.NewService(st, engine, logger)
	if err != nil {
		logger.Fatal("game service init failed", zap.Error(err))
	}
	ranks, err := rank.NewService(st, boardCache, rank.Config{
		Size: cfg.LeaderboardSize,
		TTL:  cfg.LeaderboardCacheTTL,
	}, logger)
	if err != nil {
		logger.Fatal("rank service init failed", zap.Error(err))
	}

	handler, err := httpapi.NewHandler(users, games, ranks, logger)
	if err != nil {
		logger.Fatal("handler init failed", zap.Error(err))
	}
	app := httpapi.NewApp(handler, logger)

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// buildStore prefers Postgres and falls back to the in-memory store for
// local development when DATABASE_URL is absent.
func buildStore(cfg *appcfg.AppConfig, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	pg, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}
