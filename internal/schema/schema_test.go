package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAll(t *testing.T) {
	set, err := Apply(All())
	require.NoError(t, err)

	names := make([]string, 0)
	for _, c := range set.Collections() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{Courses, Lessons, Progress, Resources, LessonFAQs, LessonResources, LessonProgress}, names)

	lessons, ok := set.Get(Lessons)
	require.True(t, ok)
	remote, ok := lessons.Field("cfvrxceh")
	require.True(t, ok)
	assert.Equal(t, "videoRemoteUrl", remote.Name)
	assert.Equal(t, FieldURL, remote.Type)
}

func TestLessonProgressCollection(t *testing.T) {
	set, err := Apply(All())
	require.NoError(t, err)

	lp, ok := set.Get(LessonProgressID)
	require.True(t, ok)
	assert.Equal(t, LessonProgress, lp.Name)

	lesson, _ := lp.Field("lesson_id_field")
	assert.True(t, lesson.Required)
	assert.True(t, lesson.CascadeDelete)
	assert.Equal(t, LessonsID, lesson.Collection)

	user, _ := lp.Field("user_id_field")
	assert.Equal(t, UsersCollectionID, user.Collection)

	current, _ := lp.Field("current_time_field")
	require.NotNil(t, current.Min)
	assert.Equal(t, 0.0, *current.Min)

	videoType, _ := lp.Field("video_type_field")
	assert.Equal(t, []string{"local", "remote", "youtube"}, videoType.Values)

	for _, r := range []*string{lp.Rules.List, lp.Rules.View, lp.Rules.Create, lp.Rules.Update, lp.Rules.Delete} {
		require.NotNil(t, r)
		assert.Equal(t, "@request.auth.id = user.id", *r)
	}
}

func TestUniqueIndexes(t *testing.T) {
	set, err := Apply(All())
	require.NoError(t, err)

	assert.Contains(t, UniqueIndexes(set), UniqueIndex{Collection: LessonProgress, Fields: []string{"lesson", "user"}})
	assert.Contains(t, UniqueIndexes(set), UniqueIndex{Collection: Progress, Fields: []string{"user", "course"}})
}

func TestRevertUpdatedLessons(t *testing.T) {
	set, err := Apply(All())
	require.NoError(t, err)

	require.NoError(t, Revert(set, updatedLessons()))
	lessons, _ := set.Get(Lessons)
	_, ok := lessons.Field("cfvrxceh")
	assert.False(t, ok)

	assert.Error(t, Revert(set, updatedLessons()), "second revert has nothing to remove")
}

func TestApplyRejectsDuplicateCollection(t *testing.T) {
	_, err := Apply([]Migration{createdCourses(), createdCourses()})
	assert.ErrorContains(t, err, "already exists")
}

func TestApplySortsByVersion(t *testing.T) {
	_, err := Apply([]Migration{updatedLessons(), createdLessons(), createdCourses()})
	assert.NoError(t, err)
}

func TestExportJSON(t *testing.T) {
	set, err := Apply(All())
	require.NoError(t, err)
	lp, _ := set.Get(LessonProgress)

	data, err := ExportJSON(*lp)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "lesson_progress_001", doc["id"])
	assert.Equal(t, []any{"CREATE UNIQUE INDEX `idx_lesson_user` ON `lesson_progress` (`lesson`, `user`)"}, doc["indexes"])
	assert.Equal(t, "@request.auth.id = user.id", doc["updateRule"])

	fields := doc["schema"].([]any)
	require.Len(t, fields, 6)
	lesson := fields[0].(map[string]any)
	opts := lesson["options"].(map[string]any)
	assert.Equal(t, "b36lt0a0v5anqh3", opts["collectionId"])
	assert.Equal(t, true, opts["cascadeDelete"])
}

func TestExportJSONNilRules(t *testing.T) {
	data, err := ExportJSON(Collection{ID: "x", Name: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"deleteRule": null`)
	assert.Contains(t, string(data), `"type": "base"`)
}

func TestPostgresDDL(t *testing.T) {
	stmts, err := PostgresDDL(All())
	require.NoError(t, err)

	var all []string
	for _, s := range stmts {
		all = append(all, s.SQL)
	}
	joined := strings.Join(all, "\n")

	assert.Contains(t, joined, `CREATE TABLE IF NOT EXISTS "lesson_progress"`)
	assert.Contains(t, joined, `"lesson" TEXT NOT NULL REFERENCES "lessons" ("id") ON DELETE CASCADE`)
	assert.Contains(t, joined, `"user" TEXT NOT NULL,`)
	assert.Contains(t, joined, `"currentTime" DOUBLE PRECISION CHECK ("currentTime" >= 0)`)
	assert.Contains(t, joined, `"completed" BOOLEAN NOT NULL DEFAULT false`)
	assert.Contains(t, joined, `"videoType" TEXT CHECK ("videoType" IN ('local', 'remote', 'youtube'))`)
	assert.Contains(t, joined, `CREATE UNIQUE INDEX IF NOT EXISTS "idx_lesson_user" ON "lesson_progress" ("lesson", "user")`)
	assert.Contains(t, joined, `ALTER TABLE "lessons" ADD COLUMN IF NOT EXISTS "videoRemoteUrl" TEXT`)

	last := stmts[len(stmts)-1]
	assert.Equal(t, "1750608000_created_lesson_progress", last.Migration)
}
