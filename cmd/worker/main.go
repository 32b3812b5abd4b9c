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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/app"
	"github.com/mediafeed/mediafeed-go/internal/config"
	"github.com/mediafeed/mediafeed-go/internal/queue"
	"github.com/mediafeed/mediafeed-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger.Log); err != nil {
		logger.Log.Error("worker exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.Redis.URL == "" {
		return errors.New("redis.url must be set to run the worker")
	}
	conn, err := queue.ParseRedisURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to close connections", zap.Error(err))
		}
	}()

	srv := queue.NewServer(conn, cfg.Redis.Concurrency, queue.NewSyncHandler(a.Engine, log.Named("tasks")), log.Named("worker"))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}

	// The worker has no API, but its sync metrics are still scraped.
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.Int("concurrency", cfg.Redis.Concurrency),
		zap.Int("metrics_port", cfg.Server.Port),
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		log.Warn("failed to stop metrics server", zap.Error(err))
	}
	log.Info("worker stopped gracefully")
	return nil
}
