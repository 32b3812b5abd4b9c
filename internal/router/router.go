// Package router wires the HTTP handlers onto a gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/handler"
	"github.com/mediafeed/mediafeed-go/internal/metrics"
	"github.com/mediafeed/mediafeed-go/internal/middleware"
)

// Handlers are the endpoint groups served by the API.
type Handlers struct {
	Health     *handler.HealthHandler
	Channels   *handler.ChannelHandler
	Sync       *handler.SyncHandler
	Categories *handler.CategoryHandler
	Pages      *handler.PageHandler
}

// Options configures cross-cutting middleware. Metrics and Gatherer are
// optional.
type Options struct {
	Auth     *middleware.APIKeyAuth
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// New builds the engine.
func New(h Handlers, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}

	r.GET("/health/live", h.Health.LivenessProbe)
	r.GET("/health/ready", h.Health.ReadinessProbe)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1", opts.Auth.Identify())

	api.GET("/users/:username", h.Pages.UserPage)
	api.GET("/users/:username/categories/:slug", h.Pages.CategoryPage)

	owner := api.Group("", opts.Auth.RequireViewer())

	owner.POST("/channels", h.Channels.Add)
	owner.DELETE("/channels/:id", h.Channels.Delete)
	owner.POST("/sync", h.Sync.Sync)

	owner.GET("/categories", h.Categories.List)
	owner.POST("/categories", h.Categories.Create)
	owner.PUT("/categories/:id", h.Categories.Update)
	owner.DELETE("/categories/:id", h.Categories.Delete)
	owner.GET("/categories/:id/channels", h.Categories.ListChannels)
	owner.POST("/categories/:id/channels", h.Categories.AddChannel)
	owner.DELETE("/categories/:id/channels/:channel_id", h.Categories.RemoveChannel)

	return r
}
