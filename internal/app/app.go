// Package app assembles the sync pipeline shared by the server, worker and
// syncer binaries from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/config"
	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/repository"
	"github.com/mediafeed/mediafeed-go/internal/fetch"
	"github.com/mediafeed/mediafeed-go/internal/metrics"
	"github.com/mediafeed/mediafeed-go/internal/queue"
	"github.com/mediafeed/mediafeed-go/internal/service"
)

// App holds the long-lived dependencies of a process. Redis, Known and
// Publisher are nil when their section is not configured.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Pool     *pgxpool.Pool
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Users      repository.UserRepository
	Channels   repository.ChannelRepository
	Videos     repository.VideoRepository
	Categories repository.CategoryRepository

	Fetcher   *fetch.HTTPFetcher
	Redis     *redis.Client
	Known     *service.KnownVideoCache
	Publisher *service.MessagePublisher
	Engine    *service.SyncEngine
}

// New connects to every configured backend and builds the sync engine.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Metrics:  metrics.New(),
	}

	pool, err := db.NewPool(ctx, cfg.DB())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	logger.Info("database connection established", zap.Int32("max_conns", pool.Config().MaxConns))

	if err := a.registerMetrics(); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Users = repository.NewUserRepository(pool)
	a.Channels = repository.NewChannelRepository(pool)
	a.Videos = repository.NewVideoRepository(pool)
	a.Categories = repository.NewCategoryRepository(pool)

	a.Fetcher = fetch.New(cfg.Fetch(), &http.Client{}, logger.Named("fetch"))

	if cfg.Redis.URL != "" {
		client, err := queue.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = client
		a.Known = service.NewKnownVideoCache(client, a.Videos, logger.Named("known_videos"))
		if err := a.Known.LoadFromDB(ctx); err != nil {
			logger.Warn("failed to load known video cache, continuing with database lookups", zap.Error(err))
		}
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := service.NewMessagePublisher(cfg.RabbitMQ, logger.Named("publisher"))
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		a.Publisher = pub
	}

	opts := []service.SyncOption{
		service.WithMetrics(a.Metrics),
		service.WithLogger(logger.Named("sync")),
		service.WithConcurrency(cfg.Sync.Concurrency),
	}
	if a.Known != nil {
		opts = append(opts, service.WithKnownVideos(a.Known))
	}
	if a.Publisher != nil {
		opts = append(opts, service.WithPublisher(a.Publisher))
	}
	a.Engine = service.NewSyncEngine(a.Fetcher, a.Channels, a.Videos, opts...)

	return a, nil
}

func (a *App) registerMetrics() error {
	if err := a.Metrics.Register(a.Registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if err := metrics.RegisterPool(a.Registry, a.Pool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}
	return nil
}

// Close releases every connection New opened.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	db.Close(a.Pool)
	return errors.Join(errs...)
}

// KnownForgetter returns the known-video cache, or nil when Redis is not
// configured.
func (a *App) KnownForgetter() service.KnownVideoForgetter {
	if a.Known == nil {
		return nil
	}
	return a.Known
}
