package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/pkg/observable"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

// RecordList is an observable list of raw records for one collection.
type RecordList = observable.Store[[]recordstore.Record]

// Workspace owns the state of one signed-in user: identity, fetched collections,
// and the lesson progress mirror with its reconciler.
type Workspace struct {
	Auth *AuthStore

	Courses         *RecordList
	Lessons         *RecordList
	Progress        *RecordList
	Resources       *RecordList
	LessonFAQs      *RecordList
	LessonResources *RecordList

	Reconciler *lessonprogress.Reconciler

	lastSeen atomic.Int64

	mu      sync.Mutex
	cleanup []func()
}

// NewWorkspace builds an empty workspace whose reconciler writes through store.
func NewWorkspace(store recordstore.Store, locker *lessonprogress.KeyLocker, logger *slog.Logger) *Workspace {
	auth := NewAuthStore()
	ws := &Workspace{
		Auth:            auth,
		Courses:         observable.New([]recordstore.Record{}),
		Lessons:         observable.New([]recordstore.Record{}),
		Progress:        observable.New([]recordstore.Record{}),
		Resources:       observable.New([]recordstore.Record{}),
		LessonFAQs:      observable.New([]recordstore.Record{}),
		LessonResources: observable.New([]recordstore.Record{}),
	}
	ws.Reconciler = lessonprogress.NewReconciler(store, auth, lessonprogress.NewMirror(), locker, logger)
	return ws
}

// Mirror is the lesson progress mirror.
func (w *Workspace) Mirror() *lessonprogress.Mirror { return w.Reconciler.Mirror() }

// UserID returns the signed-in user id, or "".
func (w *Workspace) UserID() string { return w.Auth.UserID() }

// Touch records activity at now.
func (w *Workspace) Touch(now time.Time) { w.lastSeen.Store(now.UnixNano()) }

// LastSeen returns the time of the last Touch.
func (w *Workspace) LastSeen() time.Time { return time.Unix(0, w.lastSeen.Load()) }

// OnClose registers fn to run when the workspace is dropped, typically an unsubscribe.
func (w *Workspace) OnClose(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleanup = append(w.cleanup, fn)
}

// Close signs the workspace out and runs its cleanup funcs once.
func (w *Workspace) Close() {
	w.mu.Lock()
	cleanup := w.cleanup
	w.cleanup = nil
	w.mu.Unlock()

	w.Auth.Clear()
	for _, fn := range cleanup {
		fn()
	}
}
