// Command syncer syncs channel feeds from the command line or on a fixed
// interval. Arguments are channel ids; none means every channel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/app"
	"github.com/mediafeed/mediafeed-go/internal/config"
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

	ids, err := parseChannelIDs(os.Args[1:])
	if err != nil {
		logger.Log.Error("invalid arguments", zap.Error(err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger.Log)
	if err != nil {
		logger.Log.Error("failed to initialize", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	runner := &Runner{syncer: a.Engine, logger: logger.Log}
	if err := runner.Loop(ctx, cfg.Sync.Interval, ids); err != nil {
		logger.Log.Error("sync failed", zap.Error(err))
		os.Exit(1)
	}
}

// Syncer syncs a set of channels.
type Syncer interface {
	SyncByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*service.SyncResult, error)
}

// Summary counts the outcome of one run.
type Summary struct {
	Channels int
	Failed   int
	Created  int
}

// Runner runs syncs once or on a ticker.
type Runner struct {
	syncer Syncer
	logger *zap.Logger
}

// RunOnce syncs ids and logs every failing channel. Per-channel failures are
// counted in the summary, only a failure to load channels is returned.
func (r *Runner) RunOnce(ctx context.Context, ids []uuid.UUID) (Summary, error) {
	results, err := r.syncer.SyncByIDs(ctx, ids)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for id, res := range results {
		sum.Channels++
		sum.Created += len(res.Created)
		if res.Err != nil {
			sum.Failed++
			r.logger.Error("failed to sync channel",
				zap.String("channel_id", id.String()),
				zap.Error(res.Err),
			)
		}
	}

	r.logger.Info("sync run completed",
		zap.Int("channels", sum.Channels),
		zap.Int("failed", sum.Failed),
		zap.Int("created", sum.Created),
	)
	return sum, nil
}

// Loop runs once, then again every interval until ctx is done. A zero
// interval returns after the first run.
func (r *Runner) Loop(ctx context.Context, interval time.Duration, ids []uuid.UUID) error {
	if _, err := r.RunOnce(ctx, ids); err != nil {
		if interval <= 0 {
			return err
		}
		r.logger.Error("initial sync failed", zap.Error(err))
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx, ids); err != nil {
				r.logger.Error("scheduled sync failed", zap.Error(err))
			}
		case <-ctx.Done():
			r.logger.Info("syncer stopped")
			return nil
		}
	}
}

func parseChannelIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("channel id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
