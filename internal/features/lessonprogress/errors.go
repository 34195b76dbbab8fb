package lessonprogress

import "errors"

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrLessonRequired      = errors.New("lesson id is required")
	ErrNegativeCurrentTime = errors.New("current time cannot be negative")
	ErrNegativeDuration    = errors.New("duration cannot be negative")
	ErrInvalidVideoType    = errors.New("video type must be one of local, remote, youtube")
)
