package vectorstore

// Lesson is one entry in a course outline.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is the catalog-side view of a course: identity is the title, which
// is the natural key across both collections.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Chunk is a contiguous span of transcript text indexed for semantic search.
// LessonNumber is nil for text that precedes the first lesson marker.
// Index is the chunk's sequence position within its course.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Index        int
}

// Result is a single content-search hit, ordered best match first.
type Result struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Similarity   float32
}

// Filter scopes a content search to a course and/or lesson. The zero value
// matches everything. CourseTitle must already be canonical (resolved).
type Filter struct {
	CourseTitle  string
	LessonNumber *int
}

// Outline is the resolved course structure returned for outline queries.
type Outline struct {
	Title   string
	Link    string
	Lessons []Lesson
}
