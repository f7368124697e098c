// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"joblog-insights/internal/chat"
	"joblog-insights/internal/common/config"
	"joblog-insights/internal/common/database"
	"joblog-insights/internal/common/logger"
	"joblog-insights/internal/joblogs"
	"joblog-insights/internal/llm"
	"joblog-insights/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting joblog-insights",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	// --- Mongo (required) ---
	mongoClient, err := database.NewMongo(ctx, cfg.Database.Mongo)
	if err != nil {
		zapLog.Fatal("mongo initialization failed", zap.Error(err))
	}
	defer mongoClient.Close(context.Background())
	zapLog.Info("mongo connected", zap.String("database", cfg.Database.Mongo.Database))

	// --- Redis (optional; metric caching degrades to direct queries) ---
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = rc.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			zapLog.Warn("redis unavailable, metric caching disabled", zap.Error(err))
		} else {
			redisClient = rc
			defer redisClient.Close()
			zapLog.Info("redis connected", zap.String("address", cfg.Database.Redis.Address))
		}
	}

	if !cfg.LLM.Configured() {
		zapLog.Warn("LLM API key not set; chat endpoint will reject requests")
	}

	coll := mongoClient.Collection(cfg.Database.Mongo.Collection)

	completer := llm.NewClient(cfg.LLM, log)
	executor := chat.NewMongoExecutor(coll)
	pipeline := chat.NewPipeline(completer, executor, cfg.Chat.MaxResultRecords, log)

	repo := joblogs.NewRepository(coll, log)
	cache := joblogs.NewMetricsCache(redisClient,
		time.Duration(cfg.Metrics.CacheTTL)*time.Second, log)

	handler := server.NewHandler(pipeline, repo, cache, mongoClient.Ping, cfg, log)
	e := server.New(handler)
	e.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Millisecond
	e.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Millisecond

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		zapLog.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			zapLog.Info("http server stopped", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
	}
	zapLog.Info("stopped")
}
