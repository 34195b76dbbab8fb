package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore/pocketbase"
	"github.com/mo-amir99/lms-learner-go/pkg/response"
)

// UsersCollection is the auth collection users sign in against.
const UsersCollection = "users"

// PasswordAuthenticator signs users in against the record store.
type PasswordAuthenticator interface {
	AuthWithPassword(ctx context.Context, collection, identity, password string) (pocketbase.AuthResult, error)
}

// Handler processes session HTTP requests.
type Handler struct {
	registry *Registry
	auth     PasswordAuthenticator
	logger   *slog.Logger
}

// NewHandler constructs a session handler. auth may be nil when sign-in is handled elsewhere.
func NewHandler(registry *Registry, auth PasswordAuthenticator, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, auth: auth, logger: logger}
}

// Login proxies a password sign-in and opens the caller's workspace.
func (h *Handler) Login(c *gin.Context) {
	if h.auth == nil {
		response.Error(c, http.StatusNotImplemented, "Password sign-in is not available.", nil)
		return
	}

	var req struct {
		Identity string `json:"identity" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid login payload", err)
		return
	}

	result, err := h.auth.AuthWithPassword(c.Request.Context(), UsersCollection, req.Identity, req.Password)
	if err != nil {
		status, message := http.StatusBadGateway, "Failed to sign in. Please try again"
		if errors.Is(err, recordstore.ErrInvalid) || errors.Is(err, recordstore.ErrUnauthorized) {
			status, message = http.StatusUnauthorized, "Invalid credentials."
		}
		response.ErrorWithLog(h.logger, c, status, message, err)
		return
	}

	ws := h.registry.Acquire(Auth{
		UserID: result.Record.ID(),
		Email:  result.Record.String("email"),
		Token:  result.Token,
	})

	response.Success(c, http.StatusOK, gin.H{
		"token":  result.Token,
		"record": result.Record,
		"user":   ws.Auth.Current(),
	}, "")
}

// Me returns the signed-in identity.
func (h *Handler) Me(c *gin.Context) {
	ws, ok := FromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}
	response.Success(c, http.StatusOK, ws.Auth.Current(), "")
}

// Logout drops the caller's workspace.
func (h *Handler) Logout(c *gin.Context) {
	ws, ok := FromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	h.registry.Drop(ws.UserID())
	response.NoContent(c)
}
