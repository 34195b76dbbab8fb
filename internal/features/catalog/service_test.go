package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-learner-go/internal/features/lessonprogress"
	"github.com/mo-amir99/lms-learner-go/internal/features/notify"
	"github.com/mo-amir99/lms-learner-go/internal/features/session"
	"github.com/mo-amir99/lms-learner-go/internal/schema"
	"github.com/mo-amir99/lms-learner-go/pkg/cache"
	"github.com/mo-amir99/lms-learner-go/pkg/logger"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore/memstore"
	"github.com/mo-amir99/lms-learner-go/pkg/request"
)

var errDown = errors.New("store unavailable")

func seededStore() *memstore.Store {
	store := memstore.New()
	store.Seed(schema.Courses,
		recordstore.Record{"id": "C1", "title": "Go basics"},
		recordstore.Record{"id": "C2", "title": "Go advanced"},
	)
	store.Seed(schema.Lessons, recordstore.Record{"id": "L1", "course": "C1", "title": "Intro"})
	store.Seed(schema.Progress,
		recordstore.Record{"id": "P1", "user": "U1", "course": "C1", "status": schema.StatusNotStarted},
		recordstore.Record{"id": "P2", "user": "U2", "course": "C1", "status": schema.StatusInProgress},
	)
	store.Seed(schema.LessonProgress,
		recordstore.Record{"id": "LP1", "lesson": "L1", "user": "U1", "currentTime": 12.0, "duration": 60.0, "videoType": "local"},
		recordstore.Record{"id": "LP2", "lesson": "L1", "user": "U2", "currentTime": 5.0, "duration": 60.0, "videoType": "youtube"},
	)
	store.Seed(schema.Resources, recordstore.Record{"id": "R1", "title": "Cheatsheet"})
	store.Seed(schema.LessonFAQs, recordstore.Record{"id": "F1", "lesson": "L1"})
	store.Seed(schema.LessonResources, recordstore.Record{"id": "LR1", "lesson": "L1"})
	return store
}

func newWorkspace(store recordstore.Store, userID string) *session.Workspace {
	ws := session.NewWorkspace(store, nil, logger.Discard())
	ws.Auth.Save(session.Auth{UserID: userID})
	return ws
}

func TestFetchRecordsLoadsEveryCollection(t *testing.T) {
	store := seededStore()
	alerts := &notify.Recorder{}
	svc := NewService(store, nil, time.Minute, alerts, logger.Discard())
	ws := newWorkspace(store, "U1")

	snap, err := svc.FetchRecords(context.Background(), ws)
	require.NoError(t, err)

	assert.Len(t, ws.Courses.Get(), 2)
	assert.Equal(t, "C1", ws.Courses.Get()[0].ID(), "sorted by created")
	assert.Len(t, ws.Lessons.Get(), 1)
	require.Len(t, ws.Progress.Get(), 1, "only the caller's course progress")
	assert.Equal(t, "P1", ws.Progress.Get()[0].ID())
	assert.Len(t, ws.Resources.Get(), 1)
	assert.Len(t, ws.LessonFAQs.Get(), 1)
	assert.Len(t, ws.LessonResources.Get(), 1)

	mirrored := ws.Mirror().Snapshot()
	require.Len(t, mirrored, 1, "only the caller's lesson progress")
	assert.Equal(t, "LP1", mirrored[0].ID)
	assert.Equal(t, lessonprogress.VideoLocal, mirrored[0].VideoType)
	assert.Equal(t, mirrored, snap.LessonProgress)
	assert.Empty(t, alerts.Alerts())
}

func TestFetchRecordsIsAllOrNothing(t *testing.T) {
	store := seededStore()
	alerts := &notify.Recorder{}
	svc := NewService(store, nil, time.Minute, alerts, logger.Discard())
	ws := newWorkspace(store, "U1")

	stale := []recordstore.Record{{"id": "OLD"}}
	ws.Courses.Set(stale)

	store.FailNext("list", errDown)
	_, err := svc.FetchRecords(context.Background(), ws)
	require.ErrorIs(t, err, errDown)

	assert.Equal(t, stale, ws.Courses.Get())
	assert.Empty(t, ws.Mirror().Snapshot())
	assert.Equal(t, []notify.Alert{{UserID: "U1", Message: "Failed to load data. Please try again", Kind: notify.KindFail}}, alerts.Alerts())
}

func TestFetchRecordsRequiresUser(t *testing.T) {
	store := seededStore()
	svc := NewService(store, nil, time.Minute, &notify.Recorder{}, logger.Discard())

	_, err := svc.FetchRecords(context.Background(), newWorkspace(store, ""))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, store.Calls().Total())
}

func TestPrefetchOnCreate(t *testing.T) {
	store := seededStore()
	svc := NewService(store, nil, time.Minute, &notify.Recorder{}, logger.Discard())
	r := session.NewRegistry(store, nil, logger.Discard())
	r.OnCreate(svc.Prefetch)

	ws := r.Acquire(session.Auth{UserID: "U1", Token: "t"})
	assert.Eventually(t, func() bool {
		return len(ws.Courses.Get()) == 2 && len(ws.Mirror().Snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSharedCollectionsAreCached(t *testing.T) {
	store := seededStore()
	svc := NewService(store, cache.NewMemoryCache(), time.Minute, &notify.Recorder{}, logger.Discard())

	_, err := svc.FetchRecords(context.Background(), newWorkspace(store, "U1"))
	require.NoError(t, err)
	assert.Equal(t, 7, store.Calls().List)

	ws := newWorkspace(store, "U2")
	_, err = svc.FetchRecords(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, 9, store.Calls().List, "only per-user collections hit the store")
	assert.Len(t, ws.Courses.Get(), 2)
	assert.Equal(t, "LP2", ws.Mirror().Snapshot()[0].ID)

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.FetchRecords(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, 16, store.Calls().List)
}

func TestSharedCollectionsInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := seededStore()
	svc := NewService(store, client, time.Minute, &notify.Recorder{}, logger.Discard())

	_, err = svc.FetchRecords(context.Background(), newWorkspace(store, "U1"))
	require.NoError(t, err)

	assert.True(t, mr.Exists("catalog:courses"))
	assert.True(t, mr.Exists("catalog:lesson_resources"))
	assert.False(t, mr.Exists("catalog:progress"))
	assert.False(t, mr.Exists("catalog:lesson_progress"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("catalog:courses"))
}

func TestCorruptCacheFallsBackToStore(t *testing.T) {
	store := seededStore()
	mem := cache.NewMemoryCache()
	require.NoError(t, mem.Set(context.Background(), "catalog:courses", "not json", time.Minute))

	svc := NewService(store, mem, time.Minute, &notify.Recorder{}, logger.Discard())
	ws := newWorkspace(store, "U1")

	_, err := svc.FetchRecords(context.Background(), ws)
	require.NoError(t, err)
	assert.Len(t, ws.Courses.Get(), 2)
}

func TestUpdateProgressStatus(t *testing.T) {
	store := seededStore()
	alerts := &notify.Recorder{}
	svc := NewService(store, nil, time.Minute, alerts, logger.Discard())
	ws := newWorkspace(store, "U1")
	_, err := svc.FetchRecords(context.Background(), ws)
	require.NoError(t, err)

	rec := svc.UpdateProgressStatus(context.Background(), ws, "P1", schema.StatusCompleted)
	require.NotNil(t, rec)
	assert.Equal(t, schema.StatusCompleted, rec.String("status"))

	rows := ws.Progress.Get()
	require.Len(t, rows, 1)
	assert.Equal(t, schema.StatusCompleted, rows[0].String("status"))
	assert.Equal(t, "C1", rows[0].String("course"), "partial update keeps other fields")

	store.FailNext("update", errDown)
	assert.Nil(t, svc.UpdateProgressStatus(context.Background(), ws, "P1", schema.StatusInProgress))
	assert.Equal(t, schema.StatusCompleted, ws.Progress.Get()[0].String("status"))
	assert.Equal(t, []notify.Alert{{UserID: "U1", Message: "Failed to update course status. Please try again", Kind: notify.KindFail}}, alerts.Alerts())
}

func TestUpdateProgressStatusOnlyForOwner(t *testing.T) {
	store := seededStore()
	alerts := &notify.Recorder{}
	svc := NewService(store, nil, time.Minute, alerts, logger.Discard())
	ws := newWorkspace(store, "U1")

	rec, err := svc.ChangeProgressStatus(context.Background(), ws, "P2", schema.StatusCompleted)
	require.ErrorIs(t, err, ErrProgressNotFound)
	assert.Nil(t, rec)
	assert.Zero(t, store.Calls().Update)
	assert.Equal(t, schema.StatusInProgress, store.All(schema.Progress)[1].String("status"))
	assert.Empty(t, ws.Progress.Get())
	assert.Len(t, alerts.Alerts(), 1)

	_, err = svc.ChangeProgressStatus(context.Background(), ws, "missing", schema.StatusCompleted)
	assert.ErrorIs(t, err, ErrProgressNotFound)

	_, err = svc.ChangeProgressStatus(context.Background(), newWorkspace(store, ""), "P1", schema.StatusCompleted)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus("not_started"))
	assert.True(t, ValidStatus("in_progress"))
	assert.True(t, ValidStatus("completed"))
	assert.False(t, ValidStatus("done"))
	assert.False(t, ValidStatus(""))
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := seededStore()
	svc := NewService(store, nil, time.Minute, &notify.Recorder{}, logger.Discard())
	ws := newWorkspace(store, "U1")

	engine := gin.New()
	engine.Use(request.Handler(logger.Discard()))
	bind := func(c *gin.Context) {
		c.Set("workspace", ws)
		c.Next()
	}
	RegisterRoutes(engine.Group("/api"), NewHandler(svc, logger.Discard()), bind)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records?refresh=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"lessonProgress"`)
	assert.Len(t, ws.Lessons.Get(), 1)

	store.FailNext("list", errDown)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load data. Please try again")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/progress/P1/status", strings.NewReader(`{"status":"done"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/progress/P1/status", strings.NewReader(`{"status":"in_progress"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	store.FailNext("update", errDown)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/progress/P1/status", strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/progress/P2/status", strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, schema.StatusInProgress, store.All(schema.Progress)[1].String("status"))
}

func TestHandlersRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api"), NewHandler(NewService(memstore.New(), nil, time.Minute, &notify.Recorder{}, logger.Discard()), logger.Discard()))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
