package lessonprogress

import "github.com/mo-amir99/lms-learner-go/pkg/observable"

// Mirror is the session's ordered copy of its progress rows. Order is fetch order
// followed by appends; entries are unique per (lesson, user).
type Mirror struct {
	store *observable.Store[[]Record]
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{store: observable.New([]Record{})}
}

// Apply replaces the entry with rec's (lesson, user) in place, or appends rec.
func (m *Mirror) Apply(rec Record) {
	m.store.Update(func(records []Record) []Record {
		next := make([]Record, len(records), len(records)+1)
		copy(next, records)

		for i := range next {
			if next[i].SameKey(rec) {
				next[i] = rec
				return next
			}
		}
		return append(next, rec)
	})
}

// Reset replaces every entry, as after a full resync.
func (m *Mirror) Reset(records []Record) {
	next := make([]Record, len(records))
	copy(next, records)
	m.store.Set(next)
}

// Snapshot returns a copy of the current entries.
func (m *Mirror) Snapshot() []Record {
	current := m.store.Get()
	out := make([]Record, len(current))
	copy(out, current)
	return out
}

// Find returns the entry for (lessonID, userID).
func (m *Mirror) Find(lessonID, userID string) (Record, bool) {
	for _, rec := range m.store.Get() {
		if rec.Lesson == lessonID && rec.User == userID {
			return rec, true
		}
	}
	return Record{}, false
}

// Subscribe calls fn with the current entries and after every change.
// Slices passed to fn must not be modified.
func (m *Mirror) Subscribe(fn func([]Record)) func() {
	return m.store.Subscribe(fn)
}
