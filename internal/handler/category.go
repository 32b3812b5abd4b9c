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

// CategoryManager is the owner-scoped category API.
type CategoryManager interface {
	Create(ctx context.Context, owner *models.User, title string, public bool) (*models.Category, error)
	Update(ctx context.Context, owner *models.User, id uuid.UUID, upd service.CategoryUpdate) (*models.Category, error)
	Delete(ctx context.Context, owner *models.User, id uuid.UUID) error
	List(ctx context.Context, owner *models.User) ([]*models.Category, error)
	AddChannel(ctx context.Context, owner *models.User, categoryID, channelID uuid.UUID) error
	RemoveChannel(ctx context.Context, owner *models.User, categoryID, channelID uuid.UUID) error
	ListChannels(ctx context.Context, owner *models.User, categoryID uuid.UUID) ([]*models.Channel, error)
}

// CreateCategoryRequest is the body of POST /api/v1/categories.
type CreateCategoryRequest struct {
	Title  string `json:"title" binding:"required"`
	Public bool   `json:"public"`
}

// UpdateCategoryRequest is the body of PUT /api/v1/categories/:id.
type UpdateCategoryRequest struct {
	Title  *string `json:"title"`
	Public *bool   `json:"public"`
}

// CategoryChannelRequest is the body of POST /api/v1/categories/:id/channels.
type CategoryChannelRequest struct {
	ChannelID uuid.UUID `json:"channel_id" binding:"required"`
}

// CategoryHandler serves the viewer's own categories.
type CategoryHandler struct {
	categories CategoryManager
}

// NewCategoryHandler creates a CategoryHandler.
func NewCategoryHandler(categories CategoryManager) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List handles GET /api/v1/categories.
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context(), middleware.Viewer(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Create handles POST /api/v1/categories.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category, err := h.categories.Create(c.Request.Context(), middleware.Viewer(c), req.Title, req.Public)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// Update handles PUT /api/v1/categories/:id.
func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category, err := h.categories.Update(c.Request.Context(), middleware.Viewer(c), id, service.CategoryUpdate{
		Title:  req.Title,
		Public: req.Public,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// Delete handles DELETE /api/v1/categories/:id.
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), middleware.Viewer(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListChannels handles GET /api/v1/categories/:id/channels.
func (h *CategoryHandler) ListChannels(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	channels, err := h.categories.ListChannels(c.Request.Context(), middleware.Viewer(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// AddChannel handles POST /api/v1/categories/:id/channels.
func (h *CategoryHandler) AddChannel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req CategoryChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.categories.AddChannel(c.Request.Context(), middleware.Viewer(c), id, req.ChannelID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveChannel handles DELETE /api/v1/categories/:id/channels/:channel_id.
func (h *CategoryHandler) RemoveChannel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	channelID, ok := pathUUID(c, "channel_id")
	if !ok {
		return
	}

	if err := h.categories.RemoveChannel(c.Request.Context(), middleware.Viewer(c), id, channelID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
