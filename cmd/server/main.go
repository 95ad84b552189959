package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/api"
	"github.com/Harshitk-cp/beliefgraph/internal/buildconfig"
	"github.com/Harshitk-cp/beliefgraph/internal/config"
	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"github.com/Harshitk-cp/beliefgraph/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	_ = config.Load()

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var beliefs domain.BeliefStore
	var pinger api.Pinger
	switch config.BeliefStoreBackend() {
	case config.BeliefStorePostgres:
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required for the postgres belief store")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		pg := store.NewPostgresBeliefStore(pool)
		if err := pg.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		logger.Info("connected to database")
		beliefs, pinger = pg, pg
	default:
		logger.Warn("using in-memory belief store")
		beliefs = store.NewInMemoryBeliefStore()
	}

	engine := service.NewEngine(store.NewRelationshipStore(), beliefs, logger, service.EngineOptions{
		StatsCacheTTL:    config.StatsCacheTTL(),
		CleanupInterval:  config.CleanupInterval(),
		CleanupRetention: config.CleanupRetention(),
	})

	app := api.NewApp(engine, logger, api.Options{
		DB:              pinger,
		RateLimitRPS:    config.RateLimitRPS(),
		RateLimitBurst:  config.RateLimitBurst(),
		DefaultMaxDepth: config.DefaultMaxDepth(),
	})

	engine.Cleanup.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.String("commit", buildconfig.Commit()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	engine.Cleanup.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
