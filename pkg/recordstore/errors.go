package recordstore

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record violates a unique constraint")
	ErrUnauthorized = errors.New("not allowed by the collection rules")
	ErrInvalid      = errors.New("record failed validation")

	// ErrNoMatch is returned by First when the list succeeded but was empty. It is
	// never a remote failure, unlike ErrNotFound from a missing collection.
	ErrNoMatch = errors.New("no record matches the filter")
)

// RemoteError is a non-2xx answer from a remote store.
type RemoteError struct {
	Status  int
	Message string
	Kind    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("record store responded %d: %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel matching the status, if any.
func (e *RemoteError) Unwrap() error {
	return e.Kind
}
