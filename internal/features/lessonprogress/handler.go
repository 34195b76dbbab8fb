package lessonprogress

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-learner-go/pkg/response"
)

// ReconcilerFunc resolves the signed-in session's reconciler for a request.
type ReconcilerFunc func(c *gin.Context) (*Reconciler, bool)

// Handler processes lesson progress HTTP requests.
type Handler struct {
	resolve ReconcilerFunc
	logger  *slog.Logger
}

// NewHandler constructs a lesson progress handler.
func NewHandler(resolve ReconcilerFunc, logger *slog.Logger) *Handler {
	return &Handler{resolve: resolve, logger: logger}
}

type progressRequest struct {
	CurrentTime *float64 `json:"currentTime"`
	Duration    *float64 `json:"duration"`
	VideoType   string   `json:"videoType"`
	Completed   bool     `json:"completed"`
}

type completeRequest struct {
	VideoType string `json:"videoType"`
}

// Get returns the caller's progress for a lesson. Absence is a successful empty response.
func (h *Handler) Get(c *gin.Context) {
	rec, ok := h.reconciler(c)
	if !ok {
		return
	}

	progress, err := rec.Lookup(c.Request.Context(), c.Param("lessonId"))
	if err != nil {
		h.respondError(c, err, "Failed to load lesson progress.")
		return
	}
	if progress == nil {
		// untyped nil so the envelope omits data
		response.Success(c, http.StatusOK, nil, "")
		return
	}

	response.Success(c, http.StatusOK, progress, "")
}

// Save records a playback observation for a lesson. A 202 without data means the
// observation was not persisted (store failure or a concurrent first save); it is
// not queued, the player should send its next observation as usual.
func (h *Handler) Save(c *gin.Context) {
	rec, ok := h.reconciler(c)
	if !ok {
		return
	}

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid progress payload", err)
		return
	}

	obs := Observation{
		CurrentTime: req.CurrentTime,
		Duration:    req.Duration,
		VideoType:   VideoType(req.VideoType),
		Completed:   req.Completed,
	}
	if err := validateInput(c.Param("lessonId"), obs); err != nil {
		h.respondError(c, err, "invalid progress payload")
		return
	}

	progress := rec.UpsertProgress(c.Request.Context(), c.Param("lessonId"), rec.CurrentUser(), obs)
	if progress == nil {
		response.Success(c, http.StatusAccepted, nil, "Progress was not saved.")
		return
	}

	response.Success(c, http.StatusOK, progress, "")
}

// Complete marks a lesson as completed, keeping the recorded position. As with Save,
// a 202 without data means nothing was persisted.
func (h *Handler) Complete(c *gin.Context) {
	rec, ok := h.reconciler(c)
	if !ok {
		return
	}

	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid completion payload", err)
			return
		}
	}

	videoType := VideoType(req.VideoType)
	if err := validateInput(c.Param("lessonId"), Observation{VideoType: videoType}); err != nil {
		h.respondError(c, err, "invalid completion payload")
		return
	}

	progress := rec.MarkCompleted(c.Request.Context(), c.Param("lessonId"), videoType)
	if progress == nil {
		response.Success(c, http.StatusAccepted, nil, "Completion was not saved.")
		return
	}

	response.Success(c, http.StatusOK, progress, "Lesson completed.")
}

// List returns the session's mirrored progress rows.
func (h *Handler) List(c *gin.Context) {
	rec, ok := h.reconciler(c)
	if !ok {
		return
	}

	response.Success(c, http.StatusOK, rec.Mirror().Snapshot(), "")
}

func (h *Handler) reconciler(c *gin.Context) (*Reconciler, bool) {
	rec, ok := h.resolve(c)
	if !ok || rec == nil {
		response.Error(c, http.StatusUnauthorized, "Not authenticated.", nil)
		return nil, false
	}
	return rec, true
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusBadGateway
	message := fallback

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		status = http.StatusUnauthorized
		message = "Not authenticated."
	case errors.Is(err, ErrLessonRequired):
		status = http.StatusBadRequest
		message = "Lesson id is required."
	case errors.Is(err, ErrNegativeCurrentTime):
		status = http.StatusBadRequest
		message = "Current time cannot be negative."
	case errors.Is(err, ErrNegativeDuration):
		status = http.StatusBadRequest
		message = "Duration cannot be negative."
	case errors.Is(err, ErrInvalidVideoType):
		status = http.StatusBadRequest
		message = "Video type must be one of local, remote, youtube."
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
