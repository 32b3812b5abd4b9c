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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/app"
	"github.com/mediafeed/mediafeed-go/internal/config"
	"github.com/mediafeed/mediafeed-go/internal/handler"
	"github.com/mediafeed/mediafeed-go/internal/middleware"
	"github.com/mediafeed/mediafeed-go/internal/queue"
	"github.com/mediafeed/mediafeed-go/internal/router"
	"github.com/mediafeed/mediafeed-go/internal/service"
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
		logger.Log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to close connections", zap.Error(err))
		}
	}()

	if err := ensureKeyUsers(ctx, a, cfg.Auth.APIKeys); err != nil {
		return err
	}

	resolver := service.NewChannelResolver(cfg.Feed.BaseURL, a.Fetcher)
	categories := service.NewCategoryService(a.Categories, log.Named("categories"))
	channels := service.NewChannelService(resolver, a.Channels, categories, a.Engine, a.KnownForgetter(), log.Named("channels"))
	query := service.NewVideoQuery(a.Videos, time.Now)
	gate := service.NewAccessGate(a.Users, a.Categories, query)

	var enqueuer handler.SyncEnqueuer
	if a.Redis != nil {
		conn, err := queue.ParseRedisURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := queue.NewClient(conn, cfg.Redis.TaskTimeout, log.Named("queue"))
		defer func() { _ = client.Close() }()
		enqueuer = client
		log.Info("sync requests will be queued")
	}
	health := handler.NewHealthHandler(a.Pool, redisPinger(a), publisherHealth(a))

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(router.Handlers{
		Health:     health,
		Channels:   handler.NewChannelHandler(channels),
		Sync:       handler.NewSyncHandler(a.Engine, enqueuer, a.Channels),
		Categories: handler.NewCategoryHandler(categories),
		Pages:      handler.NewPageHandler(gate),
	}, router.Options{
		Auth:     middleware.NewAPIKeyAuth(cfg.Auth.APIKeys, a.Users, log.Named("auth")),
		Metrics:  a.Metrics,
		Gatherer: a.Registry,
		Logger:   log.Named("http"),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			if err := srv.Close(); err != nil {
				log.Error("failed to close server", zap.Error(err))
			}
			return err
		}
		log.Info("server stopped gracefully")
		return nil
	}
}

// ensureKeyUsers creates a user for every configured API key so the key
// owners exist before their first request.
func ensureKeyUsers(ctx context.Context, a *app.App, keys map[string]string) error {
	if len(keys) == 0 {
		a.Logger.Warn("no API keys configured, only public pages are reachable")
		return nil
	}
	for username := range keys {
		if _, err := a.Users.Ensure(ctx, username); err != nil {
			return fmt.Errorf("ensure user %q: %w", username, err)
		}
	}
	return nil
}

func redisPinger(a *app.App) handler.Pinger {
	if a.Redis == nil {
		return nil
	}
	return handler.PingFunc(func(ctx context.Context) error {
		return a.Redis.Ping(ctx).Err()
	})
}

func publisherHealth(a *app.App) handler.HealthChecker {
	if a.Publisher == nil {
		return nil
	}
	return a.Publisher
}
