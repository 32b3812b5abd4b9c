package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/db/models"
	"github.com/mediafeed/mediafeed-go/internal/queue"
	"github.com/mediafeed/mediafeed-go/internal/service"
	"github.com/mediafeed/mediafeed-go/pkg/logger"
)

// ChannelSyncer syncs channels inline.
type ChannelSyncer interface {
	SyncByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*service.SyncResult, error)
}

// SyncEnqueuer hands channel syncs to the worker.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, channelID uuid.UUID) (string, error)
}

// ChannelLister lists every tracked channel.
type ChannelLister interface {
	List(ctx context.Context) ([]*models.Channel, error)
}

// SyncRequest is the optional body of POST /api/v1/sync.
type SyncRequest struct {
	ChannelIDs []uuid.UUID `json:"channel_ids"`
}

// SyncResultResponse is the outcome for one channel.
type SyncResultResponse struct {
	ChannelID     uuid.UUID `json:"channel_id"`
	Status        string    `json:"status"`
	CreatedVideos int       `json:"created_videos,omitempty"`
	TaskID        string    `json:"task_id,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Per-channel sync statuses.
const (
	SyncStatusOK            = "ok"
	SyncStatusFailed        = "failed"
	SyncStatusQueued        = "queued"
	SyncStatusAlreadyQueued = "already_queued"
)

// SyncHandler triggers feed syncs.
type SyncHandler struct {
	syncer   ChannelSyncer
	enqueuer SyncEnqueuer
	channels ChannelLister
}

// NewSyncHandler creates a SyncHandler. With a nil enqueuer syncs run inside
// the request.
func NewSyncHandler(syncer ChannelSyncer, enqueuer SyncEnqueuer, channels ChannelLister) *SyncHandler {
	return &SyncHandler{syncer: syncer, enqueuer: enqueuer, channels: channels}
}

// Sync handles POST /api/v1/sync. An empty or absent channel_ids means every
// channel.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	if h.enqueuer != nil {
		h.enqueue(c, req.ChannelIDs)
		return
	}

	results, err := h.syncer.SyncByIDs(c.Request.Context(), req.ChannelIDs)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make([]SyncResultResponse, 0, len(results))
	for id, res := range results {
		r := SyncResultResponse{ChannelID: id, Status: SyncStatusOK, CreatedVideos: len(res.Created)}
		if res.Err != nil {
			r.Status = SyncStatusFailed
			r.Error = res.Err.Error()
		}
		out = append(out, r)
	}
	sortResults(out)
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (h *SyncHandler) enqueue(c *gin.Context, ids []uuid.UUID) {
	ctx := c.Request.Context()
	if len(ids) == 0 {
		channels, err := h.channels.List(ctx)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		for _, ch := range channels {
			ids = append(ids, ch.ID)
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]SyncResultResponse, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		r := SyncResultResponse{ChannelID: id, Status: SyncStatusQueued}
		taskID, err := h.enqueuer.EnqueueSync(ctx, id)
		switch {
		case errors.Is(err, queue.ErrAlreadyQueued):
			r.Status = SyncStatusAlreadyQueued
		case err != nil:
			logger.Log.Warn("Failed to enqueue sync", zap.String("channel_id", id.String()), zap.Error(err))
			r.Status = SyncStatusFailed
			r.Error = err.Error()
		default:
			r.TaskID = taskID
		}
		out = append(out, r)
	}
	sortResults(out)
	c.JSON(http.StatusAccepted, gin.H{"results": out})
}

func sortResults(results []SyncResultResponse) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].ChannelID.String() < results[j].ChannelID.String()
	})
}
