package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-learner-go/pkg/logger"
)

func render(fn gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/", fn)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestSuccess(t *testing.T) {
	w := render(func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"id": "LP1"}, "saved") })

	require.Equal(t, http.StatusOK, w.Code)
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "saved", env["message"])
	assert.Equal(t, map[string]any{"id": "LP1"}, env["data"])
	assert.NotContains(t, env, "error")
}

func TestErrorWithLogHidesCause(t *testing.T) {
	w := render(func(c *gin.Context) {
		ErrorWithLog(logger.Discard(), c, http.StatusBadGateway, "Failed to load data.", errors.New("dial tcp 10.0.0.3: refused"))
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load data.")
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestSuccessNoCache(t *testing.T) {
	w := render(func(c *gin.Context) { SuccessNoCache(c, http.StatusOK, []string{}, "") })

	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, "0", w.Header().Get("Expires"))
}

func TestNoContent(t *testing.T) {
	w := render(func(c *gin.Context) { NoContent(c) })
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}
