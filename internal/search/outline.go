package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/coursekit/coursekit/internal/vectorstore"
)

// CourseOutlineToolName is the wire name of the course outline tool.
const CourseOutlineToolName = "get_course_outline"

// CourseOutlineTool returns a course's structure: title, link, and the full
// lesson list.
type CourseOutlineTool struct {
	index OutlineIndex
}

// NewCourseOutlineTool returns an outline tool backed by index.
func NewCourseOutlineTool(index OutlineIndex) *CourseOutlineTool {
	return &CourseOutlineTool{index: index}
}

// Name implements Tool.
func (t *CourseOutlineTool) Name() string { return CourseOutlineToolName }

// Definition implements Tool.
func (t *CourseOutlineTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        CourseOutlineToolName,
			Description: "Get the complete outline of a course including title, course link, and all lessons with their numbers and titles",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
				},
				"required": []string{"course_name"},
			},
		},
	}
}

// Execute implements Tool.
func (t *CourseOutlineTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	courseName, _ := args["course_name"].(string)
	if strings.TrimSpace(courseName) == "" {
		return Outcome{Text: "Error: 'course_name' parameter is required"}, nil
	}

	outline, err := t.index.Outline(ctx, courseName)
	if errors.Is(err, vectorstore.ErrCourseNotFound) {
		return Outcome{Text: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("fetching outline for %q: %w", courseName, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", outline.Title)
	if outline.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", outline.Link)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(outline.Lessons))
	for _, l := range outline.Lessons {
		fmt.Fprintf(&b, "Lesson %d: %s\n", l.Number, l.Title)
	}

	source := Source{Text: outline.Title, URL: t.index.CourseLink(outline.Title)}
	return Outcome{Text: strings.TrimRight(b.String(), "\n"), Sources: []Source{source}}, nil
}
