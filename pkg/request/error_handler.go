// Package request holds gin plumbing shared by every handler.
package request

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-learner-go/pkg/apperrors"
	"github.com/mo-amir99/lms-learner-go/pkg/response"
)

// Handler returns a middleware that renders errors attached with c.Error as the
// standard envelope.
func Handler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := errors.Join(errorsFromContext(c.Errors)...)
		if err == nil {
			return
		}

		appErr := apperrors.FromStore(err)
		response.ErrorWithLog(logger, c, appErr.StatusCode(), appErr.Message(), err)
	}
}

func errorsFromContext(errs []*gin.Error) []error {
	list := make([]error, 0, len(errs))
	for _, item := range errs {
		if item != nil && item.Err != nil {
			list = append(list, item.Err)
		}
	}
	return list
}
