// Package rag wires retrieval, tools, the agent loop, and session state into
// the question-answering system.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/coursekit/coursekit/internal/agent"
	"github.com/coursekit/coursekit/internal/ingest"
	"github.com/coursekit/coursekit/internal/search"
	"github.com/coursekit/coursekit/internal/session"
	"github.com/coursekit/coursekit/internal/vectorstore"
)

// QueryRunner is the slice of the agent loop the orchestrator consumes.
type QueryRunner interface {
	Run(ctx context.Context, query string, history []llms.MessageContent) (*agent.Result, error)
}

// Answer is the result of one answered query.
type Answer struct {
	Answer    string          `json:"answer"`
	Sources   []search.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

// Analytics summarizes the ingested corpus.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// Config holds orchestrator construction parameters.
type Config struct {
	ChunkSize    int
	ChunkOverlap int

	// Logger for ingestion and query progress. Nil uses slog.Default().
	Logger *slog.Logger
}

// System answers questions over the ingested course corpus.
type System struct {
	store    *vectorstore.Store
	sessions *session.Store
	runner   QueryRunner
	cfg      Config
	logger   *slog.Logger
}

// New returns a system over the given collaborators.
func New(store *vectorstore.Store, sessions *session.Store, runner QueryRunner, cfg Config) *System {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &System{store: store, sessions: sessions, runner: runner, cfg: cfg, logger: logger}
}

// AnswerQuery answers one user query. An empty sessionID starts a new
// conversation; the returned Answer always carries the session to continue
// with. The exchange is recorded only after the loop succeeds, so a failed
// query leaves history untouched.
func (s *System) AnswerQuery(ctx context.Context, query, sessionID string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if sessionID == "" {
		sessionID = s.sessions.NewSession()
	}

	history := s.sessions.History(sessionID)

	result, err := s.runner.Run(ctx, query, history)
	if err != nil {
		return nil, fmt.Errorf("answering query: %w", err)
	}

	s.sessions.AppendExchange(sessionID, query, result.Answer)
	s.logger.Info("query answered",
		"session", sessionID, "rounds", result.Rounds, "sources", len(result.Sources))

	return &Answer{Answer: result.Answer, Sources: result.Sources, SessionID: sessionID}, nil
}

// AddCourseDocument ingests a single transcript file, skipping it if the
// course is already in the catalog. Reports whether the course was added and
// how many chunks were indexed.
func (s *System) AddCourseDocument(ctx context.Context, path string) (bool, int, error) {
	doc, err := ingest.ParseFile(path, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return false, 0, err
	}

	exists, err := s.store.HasCourse(ctx, doc.Course.Title)
	if err != nil {
		return false, 0, fmt.Errorf("checking catalog for %q: %w", doc.Course.Title, err)
	}
	if exists {
		s.logger.Debug("course already ingested", "title", doc.Course.Title)
		return false, 0, nil
	}

	if err := s.store.AddCourse(ctx, doc.Course); err != nil {
		return false, 0, err
	}
	if err := s.store.AddChunks(ctx, doc.Chunks); err != nil {
		return false, 0, err
	}

	s.logger.Info("course ingested", "title", doc.Course.Title, "chunks", len(doc.Chunks))
	return true, len(doc.Chunks), nil
}

// AddCourseFolder ingests every transcript file in dir, in name order.
// Already-ingested courses are skipped, so re-running at startup is cheap.
// Returns how many courses and chunks were added.
func (s *System) AddCourseFolder(ctx context.Context, dir string) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("reading docs folder: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var courses, chunks int
	for _, name := range names {
		added, n, err := s.AddCourseDocument(ctx, filepath.Join(dir, name))
		if err != nil {
			return courses, chunks, fmt.Errorf("ingesting %s: %w", name, err)
		}
		if added {
			courses++
			chunks += n
		}
	}
	return courses, chunks, nil
}

// Analytics reports corpus statistics for the courses endpoint.
func (s *System) Analytics() Analytics {
	return Analytics{
		TotalCourses: s.store.CourseCount(),
		CourseTitles: s.store.CourseTitles(),
	}
}
