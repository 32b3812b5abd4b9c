package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubHealth bool

func (s stubHealth) IsHealthy() bool { return bool(s) }

func pingResult(err error) PingFunc {
	return func(context.Context) error { return err }
}

func TestHealthHandler_LivenessProbe(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/live", nil)

	NewHealthHandler(nil, nil, nil).LivenessProbe(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)
}

func TestHealthHandler_ReadinessProbe(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		handler    *HealthHandler
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "database only",
			handler:    NewHealthHandler(pingResult(nil), nil, nil),
			wantStatus: http.StatusOK,
			wantBody:   []string{`"database":"healthy"`, `"status":"UP"`},
		},
		{
			name:       "everything healthy",
			handler:    NewHealthHandler(pingResult(nil), pingResult(nil), stubHealth(true)),
			wantStatus: http.StatusOK,
			wantBody:   []string{`"redis":"healthy"`, `"rabbitmq":"healthy"`},
		},
		{
			name:       "database down",
			handler:    NewHealthHandler(pingResult(errors.New("refused")), nil, nil),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   []string{`"database":"unhealthy"`, `"status":"DOWN"`},
		},
		{
			name:       "broker down",
			handler:    NewHealthHandler(pingResult(nil), pingResult(nil), stubHealth(false)),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   []string{`"rabbitmq":"unhealthy"`, `"database":"healthy"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/health/ready", nil)

			tt.handler.ReadinessProbe(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			for _, s := range tt.wantBody {
				assert.Contains(t, w.Body.String(), s)
			}
		})
	}
}
