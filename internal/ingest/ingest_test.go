package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = `Course Title: Intro to MCP
Course Link: https://example.com/mcp
Course Instructor: Ada Instructor

Welcome to the course. This preamble precedes any lesson.

Lesson 0: Welcome
Lesson Link: https://example.com/mcp/0
This is the welcome lesson. It explains what the course covers.

Lesson 1: Protocol Basics
Lesson Link: https://example.com/mcp/1
The protocol defines how clients and servers exchange messages.
Each message carries a method name and parameters.
`

func TestParseCourseHeader(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleTranscript), "fallback", 800, 100)
	require.NoError(t, err)

	assert.Equal(t, "Intro to MCP", doc.Course.Title)
	assert.Equal(t, "https://example.com/mcp", doc.Course.Link)
	assert.Equal(t, "Ada Instructor", doc.Course.Instructor)

	require.Len(t, doc.Course.Lessons, 2)
	assert.Equal(t, 0, doc.Course.Lessons[0].Number)
	assert.Equal(t, "Welcome", doc.Course.Lessons[0].Title)
	assert.Equal(t, "https://example.com/mcp/0", doc.Course.Lessons[0].Link)
	assert.Equal(t, 1, doc.Course.Lessons[1].Number)
	assert.Equal(t, "Protocol Basics", doc.Course.Lessons[1].Title)
}

func TestParseChunksCarryLessonNumbers(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleTranscript), "fallback", 800, 100)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Chunks)

	// Preamble text is indexed without a lesson number.
	assert.Nil(t, doc.Chunks[0].LessonNumber)
	assert.Contains(t, doc.Chunks[0].Content, "preamble")

	var lessonOne bool
	for i, c := range doc.Chunks {
		assert.Equal(t, "Intro to MCP", c.CourseTitle)
		assert.Equal(t, i, c.Index, "chunk indices must be sequential")
		if c.LessonNumber != nil && *c.LessonNumber == 1 {
			lessonOne = true
			assert.Contains(t, c.Content, "protocol")
		}
	}
	assert.True(t, lessonOne, "expected a chunk for lesson 1")
}

func TestParseFallbackTitle(t *testing.T) {
	doc, err := Parse(strings.NewReader("Lesson 0: Only\nsome text\n"), "my_course", 800, 100)
	require.NoError(t, err)
	assert.Equal(t, "my_course", doc.Course.Title)
}

func TestParseNoTitleFails(t *testing.T) {
	_, err := Parse(strings.NewReader("just text\n"), "", 800, 100)
	assert.Error(t, err)
}

func TestSplitTextShortInputIsSingleChunk(t *testing.T) {
	chunks := SplitText("short text", 800, 100)
	assert.Equal(t, []string{"short text"}, chunks)
}

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Nil(t, SplitText("", 800, 100))
	// Degenerate size still yields the text once.
	assert.Equal(t, []string{"text"}, SplitText("text", 0, 0))
}

func TestSplitTextOverlapInvariant(t *testing.T) {
	const size, overlap = 40, 10
	text := strings.Repeat("abcdefghij", 20) // 200 runes

	chunks := SplitText(text, size, overlap)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-overlap:])
		assert.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d must start with the last %d runes of chunk %d", i, overlap, i-1)
	}
}

func TestSplitTextCoversWholeInput(t *testing.T) {
	const size, overlap = 40, 10
	text := strings.Repeat("0123456789", 17) // not a multiple of the stride

	chunks := SplitText(text, size, overlap)
	require.NotEmpty(t, chunks)

	// Reassembling with the overlap removed yields the original text.
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		b.WriteString(string([]rune(c)[overlap:]))
	}
	assert.Equal(t, text, b.String())
	assert.LessOrEqual(t, len([]rune(chunks[len(chunks)-1])), size)
}

func TestSplitTextRuneSafety(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 30)
	for _, c := range SplitText(text, 25, 5) {
		assert.True(t, strings.ToValidUTF8(c, "") == c, "chunk must be valid UTF-8")
	}
}
