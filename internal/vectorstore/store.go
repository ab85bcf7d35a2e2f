// Package vectorstore implements the dual-collection retrieval index over
// course material.
//
// Two logically separate collections back the index:
//   - catalog: one entry per course, used for fuzzy name resolution and
//     outline lookups, never for content search
//   - content: one entry per transcript chunk, used for semantic search
//
// Both are nearest-neighbor searches over embeddings, served by an embedded
// chromem-go database so no external service is required at query time.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"
)

var (
	// ErrCourseNotFound indicates fuzzy course-name resolution failed.
	// Callers recover from this locally; it is never fatal for a query.
	ErrCourseNotFound = errors.New("course not found")

	// ErrUnavailable indicates the underlying index or its embedding
	// endpoint could not be reached. Fatal for the current query.
	ErrUnavailable = errors.New("retrieval unavailable")
)

// Config holds Store construction parameters.
type Config struct {
	// MaxResults caps content-search results when the caller passes no
	// explicit limit. Default: 5.
	MaxResults int

	// MinSimilarity rejects a course-name resolution whose similarity falls
	// below the threshold. Zero (the default) accepts any catalog match,
	// mirroring the original always-accept behavior.
	MinSimilarity float32

	// Logger for debugging. Nil uses slog.Default().
	Logger *slog.Logger
}

// Store manages the catalog and content collections.
//
// Store is safe for concurrent use by multiple goroutines. Reads dominate;
// writes happen during ingestion at startup.
type Store struct {
	db      *chromem.DB
	catalog *chromem.Collection
	content *chromem.Collection
	embed   chromem.EmbeddingFunc

	maxResults    int
	minSimilarity float32
	logger        *slog.Logger

	// courses caches catalog metadata so source links and analytics don't
	// need an embedding round trip per lookup. Repopulated by AddCourse,
	// which ingestion runs for every course on every startup.
	mu      sync.RWMutex
	courses map[string]Course
}

// Open creates (or reopens) the index. An empty path keeps everything in
// memory, which tests rely on; otherwise the database persists under path.
// embed is used for both collections.
func Open(path string, embed chromem.EmbeddingFunc, cfg Config) (*Store, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector database at %s: %w", path, err)
		}
	}

	catalog, err := db.GetOrCreateCollection(catalogCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("creating catalog collection: %w", err)
	}
	content, err := db.GetOrCreateCollection(contentCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("creating content collection: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:            db,
		catalog:       catalog,
		content:       content,
		embed:         embed,
		maxResults:    maxResults,
		minSimilarity: cfg.MinSimilarity,
		logger:        logger,
		courses:       make(map[string]Course),
	}, nil
}

// AddCourse upserts the catalog entry for a course. The title doubles as the
// document ID and the embedded text, so fuzzy name queries land on it.
func (s *Store) AddCourse(ctx context.Context, course Course) error {
	if course.Title == "" {
		return errors.New("course title must not be empty")
	}

	lessonsJSON, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("marshaling lessons for %q: %w", course.Title, err)
	}

	doc := chromem.Document{
		ID:      course.Title,
		Content: course.Title,
		Metadata: map[string]string{
			"title":       course.Title,
			"course_link": course.Link,
			"instructor":  course.Instructor,
			"lessons":     string(lessonsJSON),
		},
	}
	if err := s.catalog.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: adding catalog entry %q: %w", ErrUnavailable, course.Title, err)
	}

	s.mu.Lock()
	s.courses[course.Title] = course
	s.mu.Unlock()

	s.logger.Debug("added catalog entry", "title", course.Title, "lessons", len(course.Lessons))
	return nil
}

// AddChunks indexes transcript chunks into the content collection. Chunk IDs
// are derived from the course title and chunk index, so re-ingesting a course
// overwrites rather than duplicates.
func (s *Store) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		meta := map[string]string{
			"course_title": c.CourseTitle,
			"chunk_index":  strconv.Itoa(c.Index),
		}
		if c.LessonNumber != nil {
			meta["lesson_number"] = strconv.Itoa(*c.LessonNumber)
		}
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s_%d", c.CourseTitle, c.Index),
			Content:  c.Content,
			Metadata: meta,
		})
	}

	if err := s.content.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: adding %d chunks: %w", ErrUnavailable, len(docs), err)
	}

	s.logger.Debug("indexed chunks", "count", len(docs), "course", chunks[0].CourseTitle)
	return nil
}

// HasCourse reports whether a course title is already present in the catalog.
// It checks the in-memory cache first and falls back to an exact-title query
// against the persisted collection.
func (s *Store) HasCourse(ctx context.Context, title string) (bool, error) {
	s.mu.RLock()
	_, cached := s.courses[title]
	s.mu.RUnlock()
	if cached {
		return true, nil
	}

	if s.catalog.Count() == 0 {
		return false, nil
	}
	results, err := s.queryCollection(ctx, s.catalog, title, 1, map[string]string{"title": title})
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}

// ResolveCourseName resolves a fuzzy, partial, or misspelled course name to
// the canonical catalog title using nearest-neighbor search restricted to
// top-1. An empty catalog or a below-threshold match yields ErrCourseNotFound.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	if s.catalog.Count() == 0 {
		return "", fmt.Errorf("%w: %q (catalog is empty)", ErrCourseNotFound, name)
	}

	results, err := s.queryCollection(ctx, s.catalog, name, 1, nil)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}

	best := results[0]
	if s.minSimilarity > 0 && best.Similarity < s.minSimilarity {
		s.logger.Debug("rejected course match below threshold",
			"query", name, "match", best.Metadata["title"], "similarity", best.Similarity)
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}

	return best.Metadata["title"], nil
}

// Search performs semantic search over the content collection. The filter's
// course title must already be canonical; lesson numbers are matched by
// metadata equality. limit <= 0 uses the configured default. A filtered query
// with no matches returns an empty slice, never an error.
func (s *Store) Search(ctx context.Context, query string, filter Filter, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	if s.content.Count() == 0 {
		return nil, nil
	}

	var where map[string]string
	if filter.CourseTitle != "" || filter.LessonNumber != nil {
		where = make(map[string]string, 2)
		if filter.CourseTitle != "" {
			where["course_title"] = filter.CourseTitle
		}
		if filter.LessonNumber != nil {
			where["lesson_number"] = strconv.Itoa(*filter.LessonNumber)
		}
	}

	hits, err := s.queryCollection(ctx, s.content, query, limit, where)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := Result{
			Content:     h.Content,
			CourseTitle: h.Metadata["course_title"],
			Similarity:  h.Similarity,
		}
		if raw, ok := h.Metadata["lesson_number"]; ok {
			if n, err := strconv.Atoi(raw); err == nil {
				r.LessonNumber = &n
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// Outline resolves a fuzzy course name and returns the course structure:
// title, link, and the ordered lesson list.
func (s *Store) Outline(ctx context.Context, name string) (*Outline, error) {
	title, err := s.ResolveCourseName(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	course, ok := s.courses[title]
	s.mu.RUnlock()
	if !ok {
		// Cache miss: the catalog entry exists but was written by an earlier
		// process. Fetch its metadata with an exact-title query.
		results, err := s.queryCollection(ctx, s.catalog, title, 1, map[string]string{"title": title})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, name)
		}
		course = courseFromMetadata(results[0].Metadata)
		s.mu.Lock()
		s.courses[title] = course
		s.mu.Unlock()
	}

	return &Outline{Title: course.Title, Link: course.Link, Lessons: course.Lessons}, nil
}

// CourseLink returns the course's source URL, if known.
func (s *Store) CourseLink(title string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.courses[title].Link
}

// LessonLink returns the URL for a lesson within a course, if known.
func (s *Store) LessonLink(title string, lessonNumber int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.courses[title].Lessons {
		if l.Number == lessonNumber {
			return l.Link
		}
	}
	return ""
}

// CourseCount returns the number of known courses.
func (s *Store) CourseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}

// CourseTitles returns all known course titles, sorted.
func (s *Store) CourseTitles() []string {
	s.mu.RLock()
	titles := make([]string, 0, len(s.courses))
	for t := range s.courses {
		titles = append(titles, t)
	}
	s.mu.RUnlock()
	sort.Strings(titles)
	return titles
}

// queryCollection wraps chromem's query path with the guards the library
// needs: nResults may not exceed the collection's document count, and the
// count can move between the clamp and the query. The query is embedded
// exactly once; any step-down retry runs against the precomputed vector, so
// retries never cost extra embedding round trips. Zero surviving candidates
// is an empty result, not an error.
func (s *Store) queryCollection(ctx context.Context, col *chromem.Collection, query string, n int, where map[string]string) ([]chromem.Result, error) {
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrUnavailable, err)
	}

	for attempt := n; attempt > 0; attempt-- {
		results, err := col.QueryEmbedding(ctx, vec, attempt, where, nil)
		if err == nil {
			return results, nil
		}
		if !strings.Contains(err.Error(), "nResults") {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	// Even one result exceeded the filtered candidate count: nothing matches.
	return nil, nil
}

func courseFromMetadata(meta map[string]string) Course {
	course := Course{
		Title:      meta["title"],
		Link:       meta["course_link"],
		Instructor: meta["instructor"],
	}
	if raw := meta["lessons"]; raw != "" {
		// Malformed metadata degrades to an empty lesson list.
		_ = json.Unmarshal([]byte(raw), &course.Lessons)
	}
	return course
}
