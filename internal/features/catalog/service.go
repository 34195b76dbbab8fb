// Package catalog loads the read-mostly collections a learner browses and keeps the
// caller's workspace in sync with them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/internal/features/notify"
	"github.com/mo-amir99/lms-learner-go/internal/features/session"
	"github.com/mo-amir99/lms-learner-go/internal/schema"
	"github.com/mo-amir99/lms-learner-go/pkg/cache"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

const (
	fetchFailedMessage  = "Failed to load data. Please try again"
	statusFailedMessage = "Failed to update course status. Please try again"

	sortByCreated   = "created"
	keyPrefix       = "catalog:"
	prefetchTimeout = 30 * time.Second
)

var (
	// ErrNotAuthenticated is returned when the workspace has no signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidStatus is returned for a progress status outside the known set.
	ErrInvalidStatus = errors.New("invalid progress status")
	// ErrProgressNotFound is returned when the progress row does not exist or belongs
	// to someone else.
	ErrProgressNotFound = errors.New("progress not found")
)

// Shared lists the collections that are identical for every learner and can be cached.
var Shared = []string{
	schema.Courses,
	schema.Lessons,
	schema.Resources,
	schema.LessonFAQs,
	schema.LessonResources,
}

// ValidStatus reports whether status is a known course progress status.
func ValidStatus(status string) bool {
	switch status {
	case schema.StatusNotStarted, schema.StatusInProgress, schema.StatusCompleted:
		return true
	}
	return false
}

// Snapshot is everything FetchRecords loaded for one user.
type Snapshot struct {
	Courses         []recordstore.Record    `json:"courses"`
	Lessons         []recordstore.Record    `json:"lessons"`
	Progress        []recordstore.Record    `json:"progress"`
	LessonProgress  []lessonprogress.Record `json:"lessonProgress"`
	Resources       []recordstore.Record    `json:"resources"`
	LessonFAQs      []recordstore.Record    `json:"lessonFaqs"`
	LessonResources []recordstore.Record    `json:"lessonResources"`
}

// Service fetches catalog data and applies it to workspaces.
type Service struct {
	store  recordstore.Store
	cache  cache.Client
	ttl    time.Duration
	alerts notify.Alerter
	logger *slog.Logger
}

// NewService builds a catalog service. cache may be nil to always hit the store.
func NewService(store recordstore.Store, c cache.Client, ttl time.Duration, alerts notify.Alerter, logger *slog.Logger) *Service {
	return &Service{store: store, cache: c, ttl: ttl, alerts: alerts, logger: logger}
}

// FetchRecords reloads every collection for the workspace user. Either all stores
// are replaced or none are; on failure the user is alerted.
func (s *Service) FetchRecords(ctx context.Context, ws *session.Workspace) (*Snapshot, error) {
	userID := ws.UserID()
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	snap, err := s.load(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch records",
			slog.String("user", userID),
			slog.String("error", err.Error()),
		)
		s.alerts.Alert(ctx, userID, fetchFailedMessage, notify.KindFail)
		return nil, err
	}

	ws.Courses.Set(snap.Courses)
	ws.Lessons.Set(snap.Lessons)
	ws.Progress.Set(snap.Progress)
	ws.Mirror().Reset(snap.LessonProgress)
	ws.Resources.Set(snap.Resources)
	ws.LessonFAQs.Set(snap.LessonFAQs)
	ws.LessonResources.Set(snap.LessonResources)

	return snap, nil
}

// Prefetch loads records for a freshly created workspace in the background, using the
// token it was created with. Meant for Registry.OnCreate.
func (s *Service) Prefetch(userID string, ws *session.Workspace) {
	token := ws.Auth.Token()
	go func() {
		ctx, cancel := context.WithTimeout(recordstore.WithToken(context.Background(), token), prefetchTimeout)
		defer cancel()
		if _, err := s.FetchRecords(ctx, ws); err == nil {
			s.logger.Debug("prefetched records", slog.String("user", userID))
		}
	}()
}

// UpdateProgressStatus sets the status of one course progress row. On failure the user
// is alerted and nil is returned; on success the workspace entry is replaced in place.
func (s *Service) UpdateProgressStatus(ctx context.Context, ws *session.Workspace, progressID, status string) recordstore.Record {
	rec, err := s.ChangeProgressStatus(ctx, ws, progressID, status)
	if err != nil {
		return nil
	}
	return rec
}

// ChangeProgressStatus is UpdateProgressStatus with the failure kept. Only rows owned
// by the workspace user can be changed; any other id fails with ErrProgressNotFound.
func (s *Service) ChangeProgressStatus(ctx context.Context, ws *session.Workspace, progressID, status string) (recordstore.Record, error) {
	userID := ws.UserID()
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	rec, err := s.updateOwned(ctx, userID, progressID, status)
	if err != nil {
		log := s.logger.ErrorContext
		if errors.Is(err, ErrProgressNotFound) {
			log = s.logger.WarnContext
		}
		log(ctx, "failed to update progress status",
			slog.String("user", userID),
			slog.String("progress", progressID),
			slog.String("error", err.Error()),
		)
		s.alerts.Alert(ctx, userID, statusFailedMessage, notify.KindFail)
		return nil, err
	}

	ws.Progress.Update(func(rows []recordstore.Record) []recordstore.Record {
		next := make([]recordstore.Record, len(rows), len(rows)+1)
		copy(next, rows)
		for i, row := range next {
			if row.ID() == rec.ID() {
				next[i] = rec
				return next
			}
		}
		return append(next, rec)
	})
	return rec, nil
}

func (s *Service) updateOwned(ctx context.Context, userID, progressID, status string) (recordstore.Record, error) {
	_, err := recordstore.First(ctx, s.store, schema.Progress, recordstore.Eq("id", progressID).And("user", userID))
	if errors.Is(err, recordstore.ErrNoMatch) {
		return nil, fmt.Errorf("%w: %s", ErrProgressNotFound, progressID)
	}
	if err != nil {
		return nil, err
	}
	return s.store.Update(ctx, schema.Progress, progressID, map[string]any{"status": status})
}

// Invalidate drops the cached shared collections.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	keys := make([]string, 0, len(Shared))
	for _, name := range Shared {
		keys = append(keys, keyPrefix+name)
	}
	return s.cache.Delete(ctx, keys...)
}

func (s *Service) load(ctx context.Context, userID string) (*Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)

	if snap.Courses, err = s.shared(ctx, schema.Courses); err != nil {
		return nil, err
	}
	if snap.Lessons, err = s.shared(ctx, schema.Lessons); err != nil {
		return nil, err
	}
	if snap.Progress, err = s.list(ctx, schema.Progress, recordstore.Eq("user", userID)); err != nil {
		return nil, err
	}

	rows, err := s.list(ctx, schema.LessonProgress, recordstore.Eq("user", userID))
	if err != nil {
		return nil, err
	}
	if snap.LessonProgress, err = lessonprogress.FromRecords(rows); err != nil {
		return nil, err
	}

	if snap.Resources, err = s.shared(ctx, schema.Resources); err != nil {
		return nil, err
	}
	if snap.LessonFAQs, err = s.shared(ctx, schema.LessonFAQs); err != nil {
		return nil, err
	}
	if snap.LessonResources, err = s.shared(ctx, schema.LessonResources); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Service) list(ctx context.Context, collection string, filter recordstore.Filter) ([]recordstore.Record, error) {
	return recordstore.FullList(ctx, s.store, collection, recordstore.ListOptions{
		Filter: filter,
		Sort:   sortByCreated,
	})
}

// shared serves a catalog collection from the cache, falling back to the store.
// Cache errors never fail the fetch.
func (s *Service) shared(ctx context.Context, collection string) ([]recordstore.Record, error) {
	if s.cache == nil {
		return s.list(ctx, collection, nil)
	}

	key := keyPrefix + collection
	var cached []recordstore.Record
	err := cache.GetJSON(ctx, s.cache, key, &cached)
	switch {
	case err == nil:
		if cached == nil {
			cached = []recordstore.Record{}
		}
		return cached, nil
	case !errors.Is(err, cache.ErrMiss):
		s.logger.WarnContext(ctx, "catalog cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	rows, err := s.list(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, rows, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "catalog cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return rows, nil
}

