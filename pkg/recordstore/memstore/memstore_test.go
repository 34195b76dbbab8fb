package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

func newProgressStore() *Store {
	return New(UniqueIndex{Collection: "lesson_progress", Fields: []string{"lesson", "user"}})
}

func TestCreateEnforcesUniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := newProgressStore()

	first, err := store.Create(ctx, "lesson_progress", map[string]any{"lesson": "L1", "user": "U1"})
	require.NoError(t, err)
	assert.Len(t, first.ID(), 15)
	assert.NotEmpty(t, first["created"])

	_, err = store.Create(ctx, "lesson_progress", map[string]any{"lesson": "L1", "user": "U1"})
	assert.ErrorIs(t, err, recordstore.ErrConflict)

	_, err = store.Create(ctx, "lesson_progress", map[string]any{"lesson": "L1", "user": "U2"})
	assert.NoError(t, err)
	assert.Len(t, store.All("lesson_progress"), 2)
}

func TestUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	store := newProgressStore()

	rec, err := store.Create(ctx, "lesson_progress", map[string]any{"lesson": "L1", "user": "U1", "currentTime": 42.0, "duration": 300.0})
	require.NoError(t, err)

	updated, err := store.Update(ctx, "lesson_progress", rec.ID(), map[string]any{"completed": true})
	require.NoError(t, err)

	assert.Equal(t, 42.0, updated["currentTime"])
	assert.Equal(t, 300.0, updated["duration"])
	assert.Equal(t, true, updated["completed"])
	assert.Equal(t, rec["created"], updated["created"])
}

func TestUpdateMissing(t *testing.T) {
	_, err := newProgressStore().Update(context.Background(), "lesson_progress", "nope", map[string]any{})
	assert.ErrorIs(t, err, recordstore.ErrNotFound)
}

func TestListFilterSortAndPaging(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.Seed("lessons",
		recordstore.Record{"name": "b", "course": "C1"},
		recordstore.Record{"name": "a", "course": "C1"},
		recordstore.Record{"name": "c", "course": "C2"},
	)

	res, err := store.List(ctx, "lessons", recordstore.ListOptions{Filter: recordstore.Eq("course", "C1"), Sort: "name", PerPage: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalItems)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "a", res.Items[0]["name"])

	res, err = store.List(ctx, "lessons", recordstore.ListOptions{Sort: "-name"})
	require.NoError(t, err)
	assert.Equal(t, "c", res.Items[0]["name"])
}

func TestFailNextAndCalls(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("network down")
	store.FailNext("list", boom)

	_, err := store.List(ctx, "courses", recordstore.ListOptions{})
	assert.ErrorIs(t, err, boom)

	_, err = store.List(ctx, "courses", recordstore.ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, Calls{List: 2}, store.Calls())
}
