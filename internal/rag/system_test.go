package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/coursekit/coursekit/internal/agent"
	"github.com/coursekit/coursekit/internal/log"
	"github.com/coursekit/coursekit/internal/search"
	"github.com/coursekit/coursekit/internal/session"
	"github.com/coursekit/coursekit/internal/testutil"
	"github.com/coursekit/coursekit/internal/vectorstore"
)

type testSystem struct {
	sys      *System
	store    *vectorstore.Store
	sessions *session.Store
	model    *testutil.ScriptedModel
}

func newTestSystem(t *testing.T, model *testutil.ScriptedModel) *testSystem {
	return newTestSystemWithThreshold(t, model, 0)
}

// newTestSystemWithThreshold builds the full pipeline with a course-name
// resolution threshold. Zero keeps the default always-accept matching.
func newTestSystemWithThreshold(t *testing.T, model *testutil.ScriptedModel, minSimilarity float32) *testSystem {
	t.Helper()

	store, err := vectorstore.Open("", testutil.EmbeddingFunc(), vectorstore.Config{
		MinSimilarity: minSimilarity,
		Logger:        log.NewNop(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	three := 3
	require.NoError(t, store.AddCourse(ctx, vectorstore.Course{
		Title: "Intro to MCP",
		Link:  "https://example.com/mcp",
		Lessons: []vectorstore.Lesson{
			{Number: 1, Title: "Protocol Basics", Link: "https://example.com/mcp/1"},
			{Number: 3, Title: "Building Servers", Link: "https://example.com/mcp/3"},
		},
	}))
	require.NoError(t, store.AddChunks(ctx, []vectorstore.Chunk{
		{Content: "lesson three covers building a weather server", CourseTitle: "Intro to MCP", LessonNumber: &three, Index: 0},
	}))

	dispatcher, err := search.NewDispatcher(
		search.NewContentSearchTool(store),
		search.NewCourseOutlineTool(store),
	)
	require.NoError(t, err)

	loop := agent.New(model, dispatcher, agent.Config{
		Model:         "test-model",
		MaxToolRounds: 2,
		MaxTokens:     800,
		Logger:        log.NewNop(),
	})

	sessions := session.NewStore(2)
	sys := New(store, sessions, loop, Config{
		ChunkSize:    800,
		ChunkOverlap: 100,
		Logger:       log.NewNop(),
	})
	return &testSystem{sys: sys, store: store, sessions: sessions, model: model}
}

func TestAnswerQueryWithContentSearch(t *testing.T) {
	ts := newTestSystem(t, testutil.NewScriptedModel(
		testutil.ToolCallResponse(testutil.ToolCall("call_1", "search_course_content",
			`{"query":"lesson 3 content","course_name":"Intro to MCP","lesson_number":3}`)),
		testutil.TextResponse("Lesson 3 covers building a weather server."),
	))

	answer, err := ts.sys.AnswerQuery(context.Background(), "What is covered in lesson 3 of 'Intro to MCP'?", "")
	require.NoError(t, err)

	assert.Equal(t, "Lesson 3 covers building a weather server.", answer.Answer)
	assert.NotEmpty(t, answer.SessionID)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "Intro to MCP - Lesson 3", answer.Sources[0].Text)
	assert.Equal(t, "https://example.com/mcp/3", answer.Sources[0].URL)
}

func TestAnswerQueryNonexistentCourse(t *testing.T) {
	// Default matching accepts the nearest catalog entry for any name, so a
	// rejection requires a resolution threshold the unrelated name cannot
	// clear (exact titles still can).
	ts := newTestSystemWithThreshold(t, testutil.NewScriptedModel(
		testutil.ToolCallResponse(testutil.ToolCall("call_1", "search_course_content",
			`{"query":"anything","course_name":"Quantum Basket Weaving"}`)),
		testutil.TextResponse("I could not find that course."),
	), 0.99)

	answer, err := ts.sys.AnswerQuery(context.Background(), "Tell me about Quantum Basket Weaving", "")
	require.NoError(t, err)

	assert.Equal(t, "I could not find that course.", answer.Answer)
	assert.Empty(t, answer.Sources)

	// The model saw the resolution failure as a tool result.
	second := ts.model.Calls[1]
	resp, ok := second[len(second)-1].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "No course found matching 'Quantum Basket Weaving'", resp.Content)
}

func TestSessionContinuity(t *testing.T) {
	ts := newTestSystem(t, testutil.NewScriptedModel(
		testutil.TextResponse("First answer."),
		testutil.TextResponse("Second answer."),
	))
	ctx := context.Background()

	first, err := ts.sys.AnswerQuery(ctx, "first question", "")
	require.NoError(t, err)

	second, err := ts.sys.AnswerQuery(ctx, "second question", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	// The second call's prompt carries exactly the one prior exchange:
	// system, prior user, prior assistant, new user.
	msgs := ts.model.Calls[1]
	require.Len(t, msgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)
}

func TestFailedQueryLeavesHistoryUntouched(t *testing.T) {
	// One scripted response: the second query exhausts the script and fails.
	ts := newTestSystem(t, testutil.NewScriptedModel(testutil.TextResponse("ok")))
	ctx := context.Background()

	first, err := ts.sys.AnswerQuery(ctx, "works", "")
	require.NoError(t, err)

	_, err = ts.sys.AnswerQuery(ctx, "fails", first.SessionID)
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrCompletion)

	history := ts.sessions.History(first.SessionID)
	require.Len(t, history, 2, "failed exchange must not be recorded")
}

func TestEmptyQueryRejected(t *testing.T) {
	ts := newTestSystem(t, testutil.NewScriptedModel())
	_, err := ts.sys.AnswerQuery(context.Background(), "   ", "")
	assert.Error(t, err)
	assert.Equal(t, 0, ts.model.CallCount())
}

func TestAddCourseFolder(t *testing.T) {
	dir := t.TempDir()
	transcript := "Course Title: Folder Course\nCourse Link: https://example.com/fc\n\nLesson 0: Start\nSome transcript text for the first lesson.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "course1.txt"), []byte(transcript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("ignored"), 0o644))

	ts := newTestSystem(t, testutil.NewScriptedModel())
	ctx := context.Background()

	courses, chunks, err := ts.sys.AddCourseFolder(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)
	assert.Positive(t, chunks)
	assert.Contains(t, ts.store.CourseTitles(), "Folder Course")

	// Re-ingesting the same folder adds nothing.
	courses, chunks, err = ts.sys.AddCourseFolder(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, courses)
	assert.Zero(t, chunks)
}

func TestAddCourseFolderMissingDir(t *testing.T) {
	ts := newTestSystem(t, testutil.NewScriptedModel())
	_, _, err := ts.sys.AddCourseFolder(context.Background(), "/does/not/exist")
	assert.Error(t, err)
}

func TestAnalytics(t *testing.T) {
	ts := newTestSystem(t, testutil.NewScriptedModel())

	a := ts.sys.Analytics()
	assert.Equal(t, 1, a.TotalCourses)
	assert.Equal(t, []string{"Intro to MCP"}, a.CourseTitles)
}
