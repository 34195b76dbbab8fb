package schema

// Collection ids as known to the hosted platform.
const (
	CoursesID         = "p4k1c0ur5e5c0ll"
	LessonsID         = "b36lt0a0v5anqh3"
	ProgressID        = "pr0gr3ss5tatu5c"
	LessonProgressID  = "lesson_progress_001"
	ResourcesID       = "r3s0urc3sc0ll01"
	LessonFAQsID      = "l3ss0nfaqsc0ll1"
	LessonResourcesID = "l3ss0nr3s0urc31"
)

// Collection names used by the application.
const (
	Courses         = "courses"
	Lessons         = "lessons"
	Progress        = "progress"
	LessonProgress  = "lesson_progress"
	Resources       = "resources"
	LessonFAQs      = "lesson_faqs"
	LessonResources = "lesson_resources"
)

// Progress status values.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Video sources a lesson can play from.
var VideoTypes = []string{"local", "remote", "youtube"}

const ownerRule = "@request.auth.id = user.id"

const authenticatedRule = `@request.auth.id != ""`

// All returns every migration in version order.
func All() []Migration {
	return []Migration{
		createdCourses(),
		createdLessons(),
		createdProgress(),
		createdResources(),
		createdLessonFAQs(),
		createdLessonResources(),
		updatedLessons(),
		createdLessonProgress(),
	}
}

func catalogRules() Rules {
	return Rules{List: rule(authenticatedRule), View: rule(authenticatedRule)}
}

func ownerRules() Rules {
	return Rules{
		List:   rule(ownerRule),
		View:   rule(ownerRule),
		Create: rule(ownerRule),
		Update: rule(ownerRule),
		Delete: rule(ownerRule),
	}
}

func createdCourses() Migration {
	c := Collection{
		ID:      CoursesID,
		Name:    Courses,
		Type:    "base",
		Created: "2024-11-02 09:00:00.000Z",
		Fields: []Field{
			{ID: "course_title", Name: "title", Type: FieldText, Required: true},
			{ID: "course_description", Name: "description", Type: FieldText},
			{ID: "course_thumbnail", Name: "thumbnail", Type: FieldURL},
		},
		Rules: catalogRules(),
	}
	return Migration{
		Version: 1750000000,
		Name:    "created_courses",
		Up:      []Change{CreateCollection{Collection: c}},
		Down:    []Change{DeleteCollection{ID: CoursesID}},
	}
}

func createdLessons() Migration {
	c := Collection{
		ID:      LessonsID,
		Name:    Lessons,
		Type:    "base",
		Created: "2024-11-02 09:05:00.000Z",
		Fields: []Field{
			{ID: "lesson_course", Name: "course", Type: FieldRelation, Required: true, Collection: CoursesID, CascadeDelete: true},
			{ID: "lesson_title", Name: "title", Type: FieldText, Required: true},
			{ID: "lesson_description", Name: "description", Type: FieldText},
			{ID: "lesson_order", Name: "order", Type: FieldNumber, Min: float(0), NoDecimal: true},
			{ID: "lesson_video", Name: "video", Type: FieldText},
			{ID: "lesson_video_type", Name: "videoType", Type: FieldSelect, Values: VideoTypes},
		},
		Indexes: []Index{{Name: "idx_lessons_course", Fields: []string{"course"}}},
		Rules:   catalogRules(),
	}
	return Migration{
		Version: 1750000001,
		Name:    "created_lessons",
		Up:      []Change{CreateCollection{Collection: c}},
		Down:    []Change{DeleteCollection{ID: LessonsID}},
	}
}

func createdProgress() Migration {
	c := Collection{
		ID:      ProgressID,
		Name:    Progress,
		Type:    "base",
		Created: "2024-11-02 09:10:00.000Z",
		Fields: []Field{
			{ID: "progress_user", Name: "user", Type: FieldRelation, Required: true, Collection: UsersCollectionID, CascadeDelete: true},
			{ID: "progress_course", Name: "course", Type: FieldRelation, Required: true, Collection: CoursesID, CascadeDelete: true},
			{ID: "progress_status", Name: "status", Type: FieldSelect, Values: []string{StatusNotStarted, StatusInProgress, StatusCompleted}},
		},
		Indexes: []Index{{Name: "idx_progress_user_course", Unique: true, Fields: []string{"user", "course"}}},
		Rules:   ownerRules(),
	}
	return Migration{
		Version: 1750000002,
		Name:    "created_progress",
		Up:      []Change{CreateCollection{Collection: c}},
		Down:    []Change{DeleteCollection{ID: ProgressID}},
	}
}

func createdResources() Migration {
	c := Collection{
		ID:      ResourcesID,
		Name:    Resources,
		Type:    "base",
		Created: "2024-11-02 09:15:00.000Z",
		Fields: []Field{
			{ID: "resource_course", Name: "course", Type: FieldRelation, Collection: CoursesID, CascadeDelete: true},
			{ID: "resource_title", Name: "title", Type: FieldText, Required: true},
			{ID: "resource_url", Name: "url", Type: FieldURL},
		},
		Rules: catalogRules(),
	}
	return Migration{
		Version: 1750000003,
		Name:    "created_resources",
		Up:      []Change{CreateCollection{Collection: c}},
		Down:    []Change{DeleteCollection{ID: ResourcesID}},
	}
}

func createdLessonFAQs() Migration {
	c := Collection{
		ID:      LessonFAQsID,
		Name:    LessonFAQs,
		Type:    "base",
		Created: "2024-11-02 09:20:00.000Z",
		Fields: []Field{
			{ID: "faq_lesson", Name: "lesson", Type: FieldRelation, Required: true, Collection: LessonsID, CascadeDelete: true},
			{ID: "faq_question", Name: "question", Type: FieldText, Required: true},
			{ID: "faq_answer", Name: "answer", Type: FieldText},
		},
		Rules: catalogRules(),
	}
	return Migration{
		Version: 1750000004,
		Name:    "created_lesson_faqs",
		Up:      []Change{CreateCollection{Collection: c}},
		Down:    []Change{DeleteCollection{ID: LessonFAQsID}},
	}
}

func createdLessonResources() Migration {
	c := Collection{
		ID:      LessonResourcesID,
		Name:    LessonResources,
		Type:    "base",
		Created: "2024-11-02 09:25:00.000Z",
		Fields: []Field{
			{ID: "lres_lesson", Name: "lesson", Type: FieldRelation, Required: true, Collection: LessonsID, CascadeDelete: true},
			{ID: "lres_title", Name: "title", Type: FieldText, Required: true},
			{ID: "lres_url", Name: "url", Type: FieldURL},
		},
		Rules: catalogRules(),
	}
	return Migration{
		Version: 1750000005,
		Name:    "created_lesson_resources",
		Up:      []Change{CreateCollection{Collection: c}},
		Down:    []Change{DeleteCollection{ID: LessonResourcesID}},
	}
}

func updatedLessons() Migration {
	return Migration{
		Version: 1750607039,
		Name:    "updated_lessons",
		Up: []Change{AddField{
			CollectionID: LessonsID,
			Field:        Field{ID: "cfvrxceh", Name: "videoRemoteUrl", Type: FieldURL},
		}},
		Down: []Change{RemoveField{CollectionID: LessonsID, FieldID: "cfvrxceh"}},
	}
}

func createdLessonProgress() Migration {
	c := Collection{
		ID:      LessonProgressID,
		Name:    LessonProgress,
		Type:    "base",
		Created: "2024-12-30 10:00:00.000Z",
		Fields: []Field{
			{ID: "lesson_id_field", Name: "lesson", Type: FieldRelation, Required: true, Collection: LessonsID, CascadeDelete: true},
			{ID: "user_id_field", Name: "user", Type: FieldRelation, Required: true, Collection: UsersCollectionID, CascadeDelete: true},
			{ID: "current_time_field", Name: "currentTime", Type: FieldNumber, Min: float(0)},
			{ID: "duration_field", Name: "duration", Type: FieldNumber, Min: float(0)},
			{ID: "completed_field", Name: "completed", Type: FieldBool},
			{ID: "video_type_field", Name: "videoType", Type: FieldSelect, Values: VideoTypes},
		},
		Indexes: []Index{{Name: "idx_lesson_user", Unique: true, Fields: []string{"lesson", "user"}}},
		Rules:   ownerRules(),
	}
	return Migration{
		Version: 1750608000,
		Name:    "created_lesson_progress",
		Up:      []Change{CreateCollection{Collection: c}},
		Down:    []Change{DeleteCollection{ID: LessonProgressID}},
	}
}
