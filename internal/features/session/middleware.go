package session

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/internal/utils/jwt"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
	"github.com/mo-amir99/lms-learner-go/pkg/response"
)

const workspaceKey = "workspace"

// Middleware authenticates requests and binds them to the caller's workspace.
type Middleware struct {
	registry *Registry
	parse    TokenParser
	logger   *slog.Logger
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(registry *Registry, parse TokenParser, logger *slog.Logger) *Middleware {
	return &Middleware{registry: registry, parse: parse, logger: logger}
}

// Require rejects requests without a valid token.
func (m *Middleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := m.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

func (m *Middleware) authenticate(c *gin.Context) (*Workspace, bool) {
	if ws, ok := FromContext(c); ok {
		return ws, true
	}

	token := BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "No token provided", nil)
		c.Abort()
		return nil, false
	}

	claims, err := m.parse(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpiredToken):
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Token expired", err)
		case errors.Is(err, ErrTokenUnconfirmed):
			response.ErrorWithLog(m.logger, c, http.StatusServiceUnavailable, "Unable to verify token", err)
		default:
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Invalid token", err)
		}
		c.Abort()
		return nil, false
	}

	ws := m.registry.Acquire(Auth{UserID: claims.UserID, Token: token})

	c.Request = c.Request.WithContext(recordstore.WithToken(c.Request.Context(), token))
	c.Set(workspaceKey, ws)
	c.Set("userId", claims.UserID)
	return ws, true
}

// BearerToken extracts the token from an Authorization header. The record store
// also accepts the bare token, so both forms are allowed.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		header = header[7:]
	}
	return strings.TrimSpace(header)
}

// FromContext returns the workspace bound by Require.
func FromContext(c *gin.Context) (*Workspace, bool) {
	val, exists := c.Get(workspaceKey)
	if !exists {
		return nil, false
	}
	ws, ok := val.(*Workspace)
	return ws, ok && ws != nil
}

// ReconcilerFrom resolves the request's lesson progress reconciler.
func ReconcilerFrom(c *gin.Context) (*lessonprogress.Reconciler, bool) {
	ws, ok := FromContext(c)
	if !ok {
		return nil, false
	}
	return ws.Reconciler, true
}
