package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mediafeed/mediafeed-go/internal/db/models"
	"github.com/mediafeed/mediafeed-go/internal/middleware"
	"github.com/mediafeed/mediafeed-go/internal/service"
)

// ChannelManager adds and deletes tracked channels.
type ChannelManager interface {
	AddChannel(ctx context.Context, owner *models.User, req service.AddChannelRequest) (*service.AddChannelResult, error)
	DeleteChannel(ctx context.Context, id uuid.UUID) error
}

// AddChannelRequest is the body of POST /api/v1/channels.
type AddChannelRequest struct {
	URL        string     `json:"url" binding:"required"`
	Title      string     `json:"title"`
	CategoryID *uuid.UUID `json:"category_id"`
}

// AddChannelResponse reports the channel and the outcome of its first sync.
type AddChannelResponse struct {
	Channel       *models.Channel `json:"channel"`
	Existing      bool            `json:"existing"`
	CreatedVideos int             `json:"created_videos"`
	SyncError     string          `json:"sync_error,omitempty"`
}

// ChannelHandler serves channel endpoints.
type ChannelHandler struct {
	channels ChannelManager
}

// NewChannelHandler creates a ChannelHandler.
func NewChannelHandler(channels ChannelManager) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

// Add handles POST /api/v1/channels. A new channel answers 201, a channel
// already tracking the same feed answers 200.
func (h *ChannelHandler) Add(c *gin.Context) {
	var req AddChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.channels.AddChannel(c.Request.Context(), middleware.Viewer(c), service.AddChannelRequest{
		URL:        req.URL,
		Title:      req.Title,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Existing {
		status = http.StatusOK
	}
	c.JSON(status, AddChannelResponse{
		Channel:       res.Channel,
		Existing:      res.Existing,
		CreatedVideos: len(res.Created),
		SyncError:     errorString(res.SyncErr),
	})
}

// Delete handles DELETE /api/v1/channels/:id.
func (h *ChannelHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.channels.DeleteChannel(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
