// Package apperrors carries the status and client-safe message an error should be
// rendered with.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

// ErrorCode identifies a failure class independently of the HTTP status.
type ErrorCode string

const (
	ErrInvalid          ErrorCode = "invalid"
	ErrNotAuthenticated ErrorCode = "not_authenticated"
	ErrForbidden        ErrorCode = "forbidden"
	ErrNotFound         ErrorCode = "not_found"
	ErrConflict         ErrorCode = "conflict"
	ErrTimeout          ErrorCode = "timeout"
	ErrRemoteFailure    ErrorCode = "remote_failure"
	ErrInternal         ErrorCode = "internal_error"
)

// AppError wraps a cause with what the client should see.
type AppError struct {
	err        error
	message    string
	code       ErrorCode
	httpStatus int
}

// New creates an AppError.
func New(message string, status int, code ErrorCode, err error) *AppError {
	return &AppError{
		err:        err,
		message:    message,
		httpStatus: status,
		code:       code,
	}
}

// NotAuthenticated is returned when a request has no usable identity.
func NotAuthenticated(err error) *AppError {
	return New("Not authenticated", http.StatusUnauthorized, ErrNotAuthenticated, err)
}

// RemoteFailure wraps a failure reported by the remote record store.
func RemoteFailure(message string, err error) *AppError {
	return New(message, http.StatusBadGateway, ErrRemoteFailure, err)
}

// FromStore classifies err, which usually comes out of a record store call. An
// AppError anywhere in the chain wins.
func FromStore(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, recordstore.ErrNotFound):
		return New("Resource not found", http.StatusNotFound, ErrNotFound, err)
	case errors.Is(err, recordstore.ErrConflict):
		return New("Resource already exists", http.StatusConflict, ErrConflict, err)
	case errors.Is(err, recordstore.ErrInvalid):
		return New("Invalid request", http.StatusBadRequest, ErrInvalid, err)
	case errors.Is(err, recordstore.ErrUnauthorized):
		return New("Not allowed", http.StatusForbidden, ErrForbidden, err)
	case errors.Is(err, context.DeadlineExceeded):
		return New("Record store timed out", http.StatusGatewayTimeout, ErrTimeout, err)
	}

	var remote *recordstore.RemoteError
	if errors.As(err, &remote) {
		return RemoteFailure("Record store unavailable", err)
	}
	return New("Internal server error", http.StatusInternalServerError, ErrInternal, err)
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *AppError) Unwrap() error {
	return e.err
}

// Message returns a safe error message for clients.
func (e *AppError) Message() string {
	return e.message
}

// StatusCode returns the HTTP status to use for this error.
func (e *AppError) StatusCode() int {
	return e.httpStatus
}

// Code returns the application level error code.
func (e *AppError) Code() ErrorCode {
	return e.code
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.code == code
	}
	return false
}
