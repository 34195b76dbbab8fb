// Package lessonprogress keeps one authoritative progress row per (lesson, user) in the
// record store and mirrors every successful write into the session's local copy.
package lessonprogress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mo-amir99/lms-learner-go/pkg/metrics"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

// Identity yields the signed-in user id, or "" when nobody is signed in.
type Identity interface {
	UserID() string
}

// Outcomes reported to the reconcile counter.
const (
	outcomeCreated         = "created"
	outcomeUpdated         = "updated"
	outcomeFound           = "found"
	outcomeNotFound        = "not_found"
	outcomeUnauthenticated = "unauthenticated"
	outcomeInvalid         = "invalid"
	outcomeConflict        = "conflict"
	outcomeFailed          = "failed"
)

// Reconciler merges player observations into the remote progress row.
//
// Store failures never reach the caller as errors: they are logged and the
// operation returns nil, the same as when nobody is signed in.
type Reconciler struct {
	store    recordstore.Store
	identity Identity
	mirror   *Mirror
	locker   *KeyLocker
	logger   *slog.Logger
}

// NewReconciler wires a reconciler. locker may be nil, in which case concurrent calls
// for the same pair race and the loser surfaces as a unique index conflict.
func NewReconciler(store recordstore.Store, identity Identity, mirror *Mirror, locker *KeyLocker, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		identity: identity,
		mirror:   mirror,
		locker:   locker,
		logger:   logger,
	}
}

// Mirror returns the local copy this reconciler writes to.
func (r *Reconciler) Mirror() *Mirror { return r.mirror }

// CurrentUser returns the signed-in user id, or "".
func (r *Reconciler) CurrentUser() string { return r.userID() }

// UpsertProgress creates the row for (lessonID, userID) or overwrites the supplied
// fields of the existing one. An empty userID is a no-op.
func (r *Reconciler) UpsertProgress(ctx context.Context, lessonID, userID string, obs Observation) *Record {
	const op = "upsert"

	if userID == "" {
		metrics.RecordReconcile(op, outcomeUnauthenticated)
		return nil
	}
	if err := validateInput(lessonID, obs); err != nil {
		r.logger.WarnContext(ctx, "rejected lesson progress",
			slog.String("lesson", lessonID),
			slog.String("user", userID),
			slog.String("error", err.Error()),
		)
		metrics.RecordReconcile(op, outcomeInvalid)
		return nil
	}

	unlock := r.lock(lessonID, userID)
	defer unlock()

	existing, err := r.find(ctx, lessonID, userID)
	if err != nil {
		r.fail(ctx, op, "failed to save lesson progress", lessonID, userID, err)
		return nil
	}

	return r.write(ctx, op, existing, obs.fields(lessonID, userID))
}

// MarkCompleted sets completed for the signed-in user's row. An existing row keeps
// its currentTime and duration; a new row is created without them.
func (r *Reconciler) MarkCompleted(ctx context.Context, lessonID string, videoType VideoType) *Record {
	const op = "complete"

	userID := r.userID()
	if userID == "" {
		metrics.RecordReconcile(op, outcomeUnauthenticated)
		return nil
	}
	if err := validateInput(lessonID, Observation{VideoType: videoType}); err != nil {
		r.logger.WarnContext(ctx, "rejected lesson completion",
			slog.String("lesson", lessonID),
			slog.String("user", userID),
			slog.String("error", err.Error()),
		)
		metrics.RecordReconcile(op, outcomeInvalid)
		return nil
	}

	unlock := r.lock(lessonID, userID)
	defer unlock()

	existing, err := r.find(ctx, lessonID, userID)
	if err != nil {
		r.fail(ctx, op, "failed to mark lesson as completed", lessonID, userID, err)
		return nil
	}

	obs := Observation{VideoType: videoType, Completed: true}
	if existing != nil {
		obs.CurrentTime = existing.CurrentTime
		obs.Duration = existing.Duration
	}

	return r.write(ctx, op, existing, obs.fields(lessonID, userID))
}

// GetProgress returns the signed-in user's row for lessonID, or nil when there is
// none, nobody is signed in, or the store could not be read.
func (r *Reconciler) GetProgress(ctx context.Context, lessonID string) *Record {
	rec, err := r.Lookup(ctx, lessonID)
	if err != nil {
		if !errors.Is(err, ErrNotAuthenticated) {
			r.logger.ErrorContext(ctx, "failed to get lesson progress",
				slog.String("lesson", lessonID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return rec
}

// Lookup is GetProgress with the failure kept: (nil, nil) means no row exists,
// ErrNotAuthenticated means nobody is signed in and the store was not called.
func (r *Reconciler) Lookup(ctx context.Context, lessonID string) (*Record, error) {
	const op = "get"

	userID := r.userID()
	if userID == "" {
		metrics.RecordReconcile(op, outcomeUnauthenticated)
		return nil, ErrNotAuthenticated
	}
	if lessonID == "" {
		metrics.RecordReconcile(op, outcomeInvalid)
		return nil, ErrLessonRequired
	}

	rec, err := r.find(ctx, lessonID, userID)
	if err != nil {
		metrics.RecordReconcile(op, outcomeFailed)
		return nil, err
	}
	if rec == nil {
		metrics.RecordReconcile(op, outcomeNotFound)
		return nil, nil
	}
	metrics.RecordReconcile(op, outcomeFound)
	return rec, nil
}

func (r *Reconciler) find(ctx context.Context, lessonID, userID string) (*Record, error) {
	raw, err := recordstore.First(ctx, r.store, Collection, keyFilter(lessonID, userID))
	if errors.Is(err, recordstore.ErrNoMatch) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", Collection, err)
	}

	rec, err := fromRecord(raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Reconciler) write(ctx context.Context, op string, existing *Record, fields map[string]any) *Record {
	lessonID, _ := fields["lesson"].(string)
	userID, _ := fields["user"].(string)

	var (
		raw     recordstore.Record
		err     error
		outcome string
	)
	if existing != nil {
		raw, err = r.store.Update(ctx, Collection, existing.ID, fields)
		outcome = outcomeUpdated
	} else {
		raw, err = r.store.Create(ctx, Collection, fields)
		outcome = outcomeCreated
	}
	if err != nil {
		r.fail(ctx, op, "failed to save lesson progress", lessonID, userID, err)
		return nil
	}

	rec, err := fromRecord(raw)
	if err != nil {
		r.fail(ctx, op, "failed to read saved lesson progress", lessonID, userID, err)
		return nil
	}

	if r.mirror != nil {
		r.mirror.Apply(rec)
	}
	metrics.RecordReconcile(op, outcome)
	return &rec
}

func (r *Reconciler) fail(ctx context.Context, op, msg, lessonID, userID string, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.String("lesson", lessonID),
		slog.String("user", userID),
		slog.String("error", err.Error()),
	}

	if errors.Is(err, recordstore.ErrConflict) {
		r.logger.WarnContext(ctx, "lesson progress already created by a concurrent call", attrs...)
		metrics.RecordReconcile(op, outcomeConflict)
		return
	}

	r.logger.ErrorContext(ctx, msg, attrs...)
	metrics.RecordReconcile(op, outcomeFailed)
}

func (r *Reconciler) lock(lessonID, userID string) func() {
	if r.locker == nil {
		return func() {}
	}
	return r.locker.Lock(progressKey(lessonID, userID))
}

func (r *Reconciler) userID() string {
	if r.identity == nil {
		return ""
	}
	return r.identity.UserID()
}

func validateInput(lessonID string, obs Observation) error {
	if lessonID == "" {
		return ErrLessonRequired
	}
	return obs.validate()
}
