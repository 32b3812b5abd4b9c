// Package middleware holds the gin middleware of the HTTP API.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

const (
	headerAPIKey      = "X-API-Key"
	headerAuth        = "Authorization"
	bearerPrefix      = "Bearer "
	unauthorizedError = "Unauthorized"

	viewerKey = "viewer"
)

// UserLookup finds the user an API key belongs to.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type apiKey struct {
	key      []byte
	username string
}

// APIKeyAuth identifies the viewer from an API key. Requests without a key
// are anonymous; a key that matches no user is rejected.
type APIKeyAuth struct {
	keys   []apiKey
	users  UserLookup
	logger *zap.Logger
}

// NewAPIKeyAuth creates an APIKeyAuth from a username to key map. Empty keys
// are ignored.
func NewAPIKeyAuth(keys map[string]string, users UserLookup, logger *zap.Logger) *APIKeyAuth {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &APIKeyAuth{users: users, logger: logger}
	for username, key := range keys {
		if key != "" && username != "" {
			a.keys = append(a.keys, apiKey{key: []byte(key), username: username})
		}
	}
	return a
}

// Identify sets the viewer for requests carrying a valid key and aborts with
// 401 on an invalid one.
func (a *APIKeyAuth) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := extractAPIKey(c.Request)
		if provided == "" {
			c.Next()
			return
		}

		username, ok := a.match(provided)
		if !ok {
			a.reject(c, "invalid API key")
			return
		}

		user, err := a.users.GetByUsername(c.Request.Context(), username)
		if db.IsNotFound(err) {
			a.reject(c, "API key user does not exist")
			return
		}
		if err != nil {
			a.logger.Error("failed to load API key user", zap.String("username", username), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		c.Set(viewerKey, user)
		c.Next()
	}
}

// RequireViewer rejects anonymous requests. It must run after Identify.
func (a *APIKeyAuth) RequireViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Viewer(c) == nil {
			a.reject(c, "missing API key")
			return
		}
		c.Next()
	}
}

// Viewer returns the identified user, or nil for anonymous requests.
func Viewer(c *gin.Context) *models.User {
	v, ok := c.Get(viewerKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// SetViewer stores user as the viewer. Handler tests use it to skip Identify.
func SetViewer(c *gin.Context, user *models.User) {
	c.Set(viewerKey, user)
}

// match compares against every key in constant time.
func (a *APIKeyAuth) match(provided string) (string, bool) {
	var username string
	found := false
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(provided), k.key) == 1 {
			username, found = k.username, true
		}
	}
	return username, found
}

func (a *APIKeyAuth) reject(c *gin.Context, reason string) {
	a.logger.Warn("unauthorized request",
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthorizedError})
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get(headerAPIKey); key != "" {
		return key
	}
	if auth := r.Header.Get(headerAuth); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
	}
	return ""
}
