package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker reports broker connectivity.
type HealthChecker interface {
	IsHealthy() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	database  Pinger
	redis     Pinger
	publisher HealthChecker
}

// NewHealthHandler creates a HealthHandler. redis and publisher are checked
// only when set.
func NewHealthHandler(database, redis Pinger, publisher HealthChecker) *HealthHandler {
	return &HealthHandler{
		database:  database,
		redis:     redis,
		publisher: publisher,
	}
}

// LivenessProbe checks if the application is running.
func (h *HealthHandler) LivenessProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessProbe checks every configured dependency.
func (h *HealthHandler) ReadinessProbe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	body := gin.H{"time": time.Now()}
	ready := true

	check := func(name string, healthy bool) {
		if healthy {
			body[name] = "healthy"
			return
		}
		body[name] = "unhealthy"
		ready = false
	}

	if h.database != nil {
		check("database", h.database.Ping(ctx) == nil)
	}
	if h.redis != nil {
		check("redis", h.redis.Ping(ctx) == nil)
	}
	if h.publisher != nil {
		check("rabbitmq", h.publisher.IsHealthy())
	}

	if !ready {
		body["status"] = "DOWN"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "UP"
	c.JSON(http.StatusOK, body)
}
