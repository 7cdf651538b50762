package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/polly/internal/analytics"
	"github.com/nulzo/polly/internal/cli"
	"github.com/nulzo/polly/internal/config"
	"github.com/nulzo/polly/internal/dispatch"
	"github.com/nulzo/polly/internal/platform/logger"
	"github.com/nulzo/polly/internal/platform/otel"
	"github.com/nulzo/polly/internal/probe"
	"github.com/nulzo/polly/internal/registry"
	"github.com/nulzo/polly/internal/server"
	"github.com/nulzo/polly/internal/store/cache"
	"github.com/nulzo/polly/internal/store/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed to load config: %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}

	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	go CheckForUpdates()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer("polly", log, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	repo, err := sqlite.NewStorage(cfg.Store.DSN)
	if err != nil {
		log.Fatal("Failed to open analytics store", zap.Error(err))
	}

	var cacheSvc cache.CacheService
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unreachable, falling back to in-memory cache", zap.Error(err))
			cacheSvc = cache.NewMemoryCache()
		} else {
			log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
			cacheSvc = redisCache
		}
	} else {
		cacheSvc = cache.NewMemoryCache()
	}

	ingestor := analytics.NewIngestor(log, repo)
	ingestor.Start(ctx)

	reg := registry.Default()
	srv := server.New(cfg, log, server.Deps{
		Registry:   reg,
		Dispatcher: dispatch.New(reg, cfg),
		Prober:     probe.New(reg),
		Ingestor:   ingestor,
		Analytics:  analytics.NewService(repo, cacheSvc),
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		banner := cli.Gradient("polly", cli.BrandGreen, cli.BrandTeal, 0.5)
		fmt.Printf("%s %s listening on port %s\n", cli.Arrow(), banner, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}

	// Flush any buffered request logs before exiting.
	ingestor.Stop()
	fmt.Printf("%s shutdown complete\n", cli.CheckMark())
}
