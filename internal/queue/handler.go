package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/service"
)

// ChannelSyncer syncs channels by id.
type ChannelSyncer interface {
	SyncByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*service.SyncResult, error)
}

// SyncHandler runs TypeSyncChannel tasks.
type SyncHandler struct {
	syncer ChannelSyncer
	logger *zap.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(syncer ChannelSyncer, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{syncer: syncer, logger: logger}
}

// ProcessTask implements asynq.Handler. Failures a retry cannot fix are
// marked with asynq.SkipRetry.
func (h *SyncHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := UnmarshalSyncChannelPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	results, err := h.syncer.SyncByIDs(ctx, []uuid.UUID{payload.ChannelID})
	if err != nil {
		return err
	}
	res, ok := results[payload.ChannelID]
	if !ok {
		return fmt.Errorf("no result for channel %s: %w", payload.ChannelID, asynq.SkipRetry)
	}

	switch {
	case res.Err == nil:
		h.logger.Info("sync task done",
			zap.String("channel_id", payload.ChannelID.String()),
			zap.Int("created", len(res.Created)),
		)
		return nil
	case errors.Is(res.Err, service.ErrChannelNotFound), errors.Is(res.Err, service.ErrMalformedFeed):
		return fmt.Errorf("sync channel %s: %w: %w", payload.ChannelID, res.Err, asynq.SkipRetry)
	default:
		return fmt.Errorf("sync channel %s: %w", payload.ChannelID, res.Err)
	}
}

// Server runs sync tasks from Redis.
type Server struct {
	asynqServer *asynq.Server
	mux         *asynq.ServeMux
	logger      *zap.Logger
}

// NewServer creates a Server processing up to concurrency tasks at once.
func NewServer(conn RedisConn, concurrency int, handler *SyncHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := asynq.NewServer(
		conn.AsynqOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				DefaultQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warn("task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(TypeSyncChannel, handler)

	return &Server{
		asynqServer: srv,
		mux:         mux,
		logger:      logger,
	}
}

// Start begins processing without blocking.
func (s *Server) Start() error {
	s.logger.Info("starting task server")
	return s.asynqServer.Start(s.mux)
}

// Stop waits for running tasks and shuts down.
func (s *Server) Stop() {
	s.logger.Info("shutting down task server")
	s.asynqServer.Shutdown()
}
