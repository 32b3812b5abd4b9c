package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediafeed/mediafeed-go/internal/db/models"
	"github.com/mediafeed/mediafeed-go/internal/middleware"
	"github.com/mediafeed/mediafeed-go/internal/service"
)

// PageResolver answers visibility-checked page queries.
type PageResolver interface {
	ResolveUserPage(ctx context.Context, viewer *models.User, username, selector string) ([]*models.Category, []*models.Video, error)
	CategoryPage(ctx context.Context, viewer *models.User, username, slug, selector string) (*service.CategoryPage, error)
}

// UserPageResponse is a user's visible categories and their videos.
type UserPageResponse struct {
	Username   string             `json:"username"`
	Period     string             `json:"period"`
	Categories []*models.Category `json:"categories"`
	Videos     []*models.Video    `json:"videos"`
}

// CategoryPageResponse is one category, its siblings and its videos.
type CategoryPageResponse struct {
	Username   string             `json:"username"`
	Period     string             `json:"period"`
	Category   *models.Category   `json:"category"`
	Categories []*models.Category `json:"categories"`
	Videos     []*models.Video    `json:"videos"`
}

// PageHandler serves the read side. Viewers may be anonymous.
type PageHandler struct {
	pages PageResolver
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(pages PageResolver) *PageHandler {
	return &PageHandler{pages: pages}
}

// period returns the requested period, treating an empty value as absent.
func period(c *gin.Context) string {
	if p := c.Query("period"); p != "" {
		return p
	}
	return service.DefaultPeriod
}

// UserPage handles GET /api/v1/users/:username.
func (h *PageHandler) UserPage(c *gin.Context) {
	username := c.Param("username")
	p := period(c)

	categories, videos, err := h.pages.ResolveUserPage(c.Request.Context(), middleware.Viewer(c), username, p)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserPageResponse{
		Username:   username,
		Period:     p,
		Categories: categories,
		Videos:     videos,
	})
}

// CategoryPage handles GET /api/v1/users/:username/categories/:slug.
func (h *PageHandler) CategoryPage(c *gin.Context) {
	username := c.Param("username")
	p := period(c)

	page, err := h.pages.CategoryPage(c.Request.Context(), middleware.Viewer(c), username, c.Param("slug"), p)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, CategoryPageResponse{
		Username:   username,
		Period:     p,
		Category:   page.Category,
		Categories: page.Categories,
		Videos:     page.Videos,
	})
}
