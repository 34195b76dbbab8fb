package lessonprogress

import (
	"github.com/mo-amir99/lms-learner-go/internal/schema"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

// Collection is the record store collection holding progress rows.
const Collection = schema.LessonProgress

// VideoType is where the lesson video is played from.
type VideoType string

const (
	VideoLocal   VideoType = "local"
	VideoRemote  VideoType = "remote"
	VideoYouTube VideoType = "youtube"
)

// Valid reports whether v is one of the known video types.
func (v VideoType) Valid() bool {
	switch v {
	case VideoLocal, VideoRemote, VideoYouTube:
		return true
	}
	return false
}

// Record is the single progress row for a (lesson, user) pair.
type Record struct {
	ID          string    `json:"id"`
	Lesson      string    `json:"lesson"`
	User        string    `json:"user"`
	CurrentTime *float64  `json:"currentTime,omitempty"`
	Duration    *float64  `json:"duration,omitempty"`
	Completed   bool      `json:"completed"`
	VideoType   VideoType `json:"videoType"`
	Created     string    `json:"created,omitempty"`
	Updated     string    `json:"updated,omitempty"`
}

// SameKey reports whether r and other belong to the same (lesson, user) pair.
func (r Record) SameKey(other Record) bool {
	return r.Lesson == other.Lesson && r.User == other.User
}

// Observation is what the player reports for a lesson. Nil times are left untouched on update.
type Observation struct {
	CurrentTime *float64
	Duration    *float64
	VideoType   VideoType
	Completed   bool
}

func (o Observation) validate() error {
	if o.CurrentTime != nil && *o.CurrentTime < 0 {
		return ErrNegativeCurrentTime
	}
	if o.Duration != nil && *o.Duration < 0 {
		return ErrNegativeDuration
	}
	if o.VideoType != "" && !o.VideoType.Valid() {
		return ErrInvalidVideoType
	}
	return nil
}

func (o Observation) fields(lessonID, userID string) map[string]any {
	videoType := o.VideoType
	if videoType == "" {
		videoType = VideoLocal
	}

	fields := map[string]any{
		"lesson":    lessonID,
		"user":      userID,
		"videoType": string(videoType),
		"completed": o.Completed,
	}
	if o.CurrentTime != nil {
		fields["currentTime"] = *o.CurrentTime
	}
	if o.Duration != nil {
		fields["duration"] = *o.Duration
	}
	return fields
}

func fromRecord(rec recordstore.Record) (Record, error) {
	var out Record
	if err := recordstore.Decode(rec, &out); err != nil {
		return Record{}, err
	}
	if out.VideoType == "" {
		out.VideoType = VideoLocal
	}
	return out, nil
}

func keyFilter(lessonID, userID string) recordstore.Filter {
	return recordstore.Eq("lesson", lessonID).And("user", userID)
}

// FromRecords decodes raw store rows, as fetched on a full resync.
func FromRecords(rows []recordstore.Record) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
