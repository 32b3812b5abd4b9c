// Package handler provides the gin handlers of the HTTP API.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/service"
	"github.com/mediafeed/mediafeed-go/pkg/logger"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Request.URL.Path,
	})
}

func badRequest(c *gin.Context, err error) {
	logger.Log.Warn("Invalid request",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)
	respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
}

// handleServiceError maps service errors onto statuses. Hidden and absent
// resources share one 404 body.
func handleServiceError(c *gin.Context, err error) {
	var (
		status  int
		message string
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, service.ErrNotFound.Error()
	case errors.Is(err, service.ErrChannelNotFound):
		status, message = http.StatusNotFound, service.ErrChannelNotFound.Error()
	case errors.Is(err, service.ErrUnresolvableChannelURL),
		errors.Is(err, service.ErrInvalidCategoryTitle):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrCategoryConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrChannelTitleUnavailable):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrFeedUnreachable),
		errors.Is(err, service.ErrMalformedFeed):
		status, message = http.StatusBadGateway, err.Error()
	default:
		logger.Log.Error("Unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	logger.Log.Debug("Request failed",
		zap.Error(err),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path),
	)
	respondError(c, status, message)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, err)
		return uuid.Nil, false
	}
	return id, true
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
