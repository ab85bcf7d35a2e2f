package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/coursekit/coursekit/internal/vectorstore"
)

// ContentSearchToolName is the wire name of the content search tool.
const ContentSearchToolName = "search_course_content"

// ContentSearchTool searches transcript chunks, with fuzzy course-name
// matching and optional lesson filtering.
type ContentSearchTool struct {
	index ContentIndex
}

// NewContentSearchTool returns a content search tool backed by index.
func NewContentSearchTool(index ContentIndex) *ContentSearchTool {
	return &ContentSearchTool{index: index}
}

// Name implements Tool.
func (t *ContentSearchTool) Name() string { return ContentSearchToolName }

// Definition implements Tool.
func (t *ContentSearchTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        ContentSearchToolName,
			Description: "Search course materials with smart course name matching and lesson filtering",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for in the course content",
					},
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
					"lesson_number": map[string]any{
						"type":        "integer",
						"description": "Specific lesson number to search within (e.g. 1, 3)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// Execute implements Tool. A course name that resolves to nothing or a search
// with no hits produces an explanatory result string for the model; only
// retrieval-layer failures return an error.
func (t *ContentSearchTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return Outcome{Text: "Error: 'query' parameter is required"}, nil
	}
	courseName, _ := args["course_name"].(string)
	lessonNumber := intArg(args, "lesson_number")

	filter := vectorstore.Filter{LessonNumber: lessonNumber}
	if courseName != "" {
		title, err := t.index.ResolveCourseName(ctx, courseName)
		if errors.Is(err, vectorstore.ErrCourseNotFound) {
			return Outcome{Text: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("resolving course %q: %w", courseName, err)
		}
		filter.CourseTitle = title
	}

	results, err := t.index.Search(ctx, query, filter, 0)
	if err != nil {
		return Outcome{}, fmt.Errorf("searching content: %w", err)
	}
	if len(results) == 0 {
		return Outcome{Text: emptyResultMessage(courseName, lessonNumber)}, nil
	}

	return t.formatResults(results), nil
}

// formatResults renders each hit as a bracketed course/lesson header followed
// by the chunk text, and collects one source reference per hit.
func (t *ContentSearchTool) formatResults(results []vectorstore.Result) Outcome {
	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))

	for _, r := range results {
		header := "[" + r.CourseTitle
		label := r.CourseTitle
		url := t.index.CourseLink(r.CourseTitle)
		if r.LessonNumber != nil {
			header += fmt.Sprintf(" - Lesson %d", *r.LessonNumber)
			label += fmt.Sprintf(" - Lesson %d", *r.LessonNumber)
			if link := t.index.LessonLink(r.CourseTitle, *r.LessonNumber); link != "" {
				url = link
			}
		}
		header += "]"

		blocks = append(blocks, header+"\n"+r.Content)
		sources = append(sources, Source{Text: label, URL: url})
	}

	return Outcome{Text: strings.Join(blocks, "\n\n"), Sources: sources}
}

func emptyResultMessage(courseName string, lessonNumber *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if courseName != "" {
		fmt.Fprintf(&b, " in course '%s'", courseName)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *lessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// intArg decodes an integer argument. JSON numbers arrive as float64 after
// unmarshaling into map[string]any.
func intArg(args map[string]any, key string) *int {
	switch v := args[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	default:
		return nil
	}
}
