package socketio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
)

var errLessonRequired = errors.New("lessonId is required")

// progressPayload is the saveLessonProgress body. Numbers may arrive as strings.
type progressPayload struct {
	LessonID    string   `json:"lessonId"`
	CurrentTime *float64 `json:"currentTime"`
	Duration    *float64 `json:"duration"`
	VideoType   string   `json:"videoType"`
	Completed   bool     `json:"completed"`
}

func (p *progressPayload) lesson() string { return p.LessonID }

func (p *progressPayload) setLesson(id string) { p.LessonID = id }

func (p *progressPayload) observation() (string, lessonprogress.Observation) {
	return p.LessonID, lessonprogress.Observation{
		CurrentTime: p.CurrentTime,
		Duration:    p.Duration,
		VideoType:   lessonprogress.VideoType(p.VideoType),
		Completed:   p.Completed,
	}
}

// completionPayload is the markLessonCompleted body; a bare lesson id string is
// accepted too.
type completionPayload struct {
	LessonID  string `json:"lessonId"`
	VideoType string `json:"videoType"`
}

func (p *completionPayload) lesson() string { return p.LessonID }

func (p *completionPayload) setLesson(id string) { p.LessonID = id }

type lessonPayload interface {
	lesson() string
	setLesson(id string)
}

// decodeArgs reads the first event argument into out. Value checks beyond shape are
// left to the reconciler.
func decodeArgs(args []any, out lessonPayload) error {
	if len(args) == 0 || args[0] == nil {
		return errLessonRequired
	}

	switch v := args[0].(type) {
	case string:
		out.setLesson(v)
	case map[string]any:
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           out,
		})
		if err != nil {
			return err
		}
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	default:
		return fmt.Errorf("invalid payload type %T", v)
	}

	out.setLesson(strings.TrimSpace(out.lesson()))
	if out.lesson() == "" {
		return errLessonRequired
	}
	return nil
}
