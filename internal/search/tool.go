// Package search provides the model-facing tools over the retrieval index:
// semantic content search and course outline lookup, plus the dispatcher that
// routes tool calls by name.
package search

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/coursekit/coursekit/internal/vectorstore"
)

// Source is a provenance reference attached to a tool outcome, surfaced to
// the end user alongside the answer.
type Source struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// Outcome is the result of one tool execution. Text goes back to the model as
// the tool result; Sources go to the user. Recoverable conditions (no course
// match, empty results, bad arguments) are reported in Text, not as errors —
// the model reads them and adjusts. An error return means the tool could not
// run at all and is fatal for the query.
type Outcome struct {
	Text    string
	Sources []Source
}

// Tool is one capability exposed to the model.
type Tool interface {
	// Name returns the wire name the model calls the tool by.
	Name() string

	// Definition returns the schema advertised to the model.
	Definition() llms.Tool

	// Execute runs the tool with decoded JSON arguments.
	Execute(ctx context.Context, args map[string]any) (Outcome, error)
}

// ContentIndex is the slice of the retrieval index the content search tool
// consumes.
type ContentIndex interface {
	ResolveCourseName(ctx context.Context, name string) (string, error)
	Search(ctx context.Context, query string, filter vectorstore.Filter, limit int) ([]vectorstore.Result, error)
	CourseLink(title string) string
	LessonLink(title string, lessonNumber int) string
}

// OutlineIndex is the slice of the retrieval index the outline tool consumes.
type OutlineIndex interface {
	Outline(ctx context.Context, name string) (*vectorstore.Outline, error)
	CourseLink(title string) string
}
