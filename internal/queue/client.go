package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// DefaultQueue is the only queue sync tasks use.
const DefaultQueue = "default"

// ErrAlreadyQueued means a sync for the channel is pending already.
var ErrAlreadyQueued = errors.New("sync already queued")

// Enqueuer is the part of asynq.Client the Client uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues channel syncs.
type Client struct {
	enqueuer Enqueuer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewClient creates a Client on an asynq client for conn. timeout bounds one
// task run.
func NewClient(conn RedisConn, timeout time.Duration, logger *zap.Logger) *Client {
	return NewClientWithEnqueuer(asynq.NewClient(conn.AsynqOpt()), timeout, logger)
}

// NewClientWithEnqueuer creates a Client on an existing enqueuer.
func NewClientWithEnqueuer(enqueuer Enqueuer, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{enqueuer: enqueuer, timeout: timeout, logger: logger}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.enqueuer.Close()
}

// EnqueueSync queues a sync of channelID and returns the task id. While a
// sync of the same channel is pending it returns ErrAlreadyQueued.
func (c *Client) EnqueueSync(ctx context.Context, channelID uuid.UUID) (string, error) {
	task, err := NewSyncChannelTask(channelID)
	if err != nil {
		return "", err
	}

	info, err := c.enqueuer.EnqueueContext(ctx, task,
		asynq.MaxRetry(1),
		asynq.Timeout(c.timeout),
		asynq.Queue(DefaultQueue),
		asynq.Unique(c.timeout),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", fmt.Errorf("%w: channel %s", ErrAlreadyQueued, channelID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Debug("sync task enqueued",
		zap.String("channel_id", channelID.String()),
		zap.String("task_id", info.ID),
	)
	return info.ID, nil
}
