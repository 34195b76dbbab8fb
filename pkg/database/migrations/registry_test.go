package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-learner-go/internal/schema"
)

func noop(*gorm.DB) error { return nil }

func TestRegisterKeepsOrderAndRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("b", noop))
	require.NoError(t, r.Register("a", noop))
	assert.Error(t, r.Register("b", noop))

	assert.Equal(t, []string{"b", "a"}, r.Names())
	assert.Equal(t, []string{"a"}, r.Pending([]string{"b", "zzz"}))
	assert.Empty(t, r.Pending([]string{"a", "b"}))
}

func TestRegisterSchema(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterSchema(r, schema.All()))

	names := r.Names()
	require.Len(t, names, len(schema.All()))
	assert.Equal(t, "1750000000_created_courses", names[0])
	assert.Equal(t, "1750608000_created_lesson_progress", names[len(names)-1])
	assert.Contains(t, names, "1750607039_updated_lessons")

	assert.Error(t, RegisterSchema(r, schema.All()), "second registration collides")
}
