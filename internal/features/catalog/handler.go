package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-learner-go/internal/features/session"
	"github.com/mo-amir99/lms-learner-go/pkg/apperrors"
	"github.com/mo-amir99/lms-learner-go/pkg/response"
)

// Handler processes catalog HTTP requests.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a catalog handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Records resyncs the caller's workspace and returns what was loaded.
// ?refresh=true bypasses the shared catalog cache.
func (h *Handler) Records(c *gin.Context) {
	ws, ok := session.FromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if err := h.service.Invalidate(c.Request.Context()); err != nil {
			h.logger.WarnContext(c.Request.Context(), "failed to invalidate catalog cache", slog.String("error", err.Error()))
		}
	}

	snap, err := h.service.FetchRecords(c.Request.Context(), ws)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			_ = c.Error(apperrors.NotAuthenticated(err))
			return
		}
		_ = c.Error(apperrors.RemoteFailure(fetchFailedMessage, err))
		return
	}

	response.SuccessNoCache(c, http.StatusOK, snap, "")
}

// UpdateStatus changes the status of one course progress row.
func (h *Handler) UpdateStatus(c *gin.Context) {
	ws, ok := session.FromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated.", nil)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid status payload", err)
		return
	}
	if !ValidStatus(req.Status) {
		response.Error(c, http.StatusBadRequest, ErrInvalidStatus.Error(), nil)
		return
	}

	rec, err := h.service.ChangeProgressStatus(c.Request.Context(), ws, c.Param("progressId"), req.Status)
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		_ = c.Error(apperrors.NotAuthenticated(err))
		return
	case errors.Is(err, ErrProgressNotFound):
		response.Error(c, http.StatusNotFound, "Progress not found.", nil)
		return
	case err != nil:
		_ = c.Error(apperrors.RemoteFailure(statusFailedMessage, err))
		return
	}

	response.Success(c, http.StatusOK, rec, "Course status updated.")
}
