// Package ingest turns raw course transcript files into catalog entries and
// search-ready chunks.
//
// Expected file layout:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: <lesson title>
//	Lesson Link: <url>
//	<transcript text>
//
//	Lesson 1: <lesson title>
//	...
//
// Header lines are optional except the title, which falls back to the file
// name. Text before the first lesson marker is indexed without a lesson
// number.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/coursekit/coursekit/internal/vectorstore"
)

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Document is one parsed and chunked transcript file.
type Document struct {
	Course vectorstore.Course
	Chunks []vectorstore.Chunk
}

// ParseFile reads and parses a transcript file from disk.
func ParseFile(path string, chunkSize, chunkOverlap int) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	doc, err := Parse(f, name, chunkSize, chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// Parse parses a transcript from r. fallbackTitle is used when the file has
// no "Course Title:" header.
func Parse(r io.Reader, fallbackTitle string, chunkSize, chunkOverlap int) (*Document, error) {
	course := vectorstore.Course{Title: fallbackTitle}

	// Text accumulates per segment: the preamble before the first lesson
	// marker, then one segment per lesson.
	type segment struct {
		lessonNumber *int
		text         strings.Builder
	}
	segments := []*segment{{}}
	current := segments[0]
	inHeader := true

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if m := lessonMarker.FindStringSubmatch(trimmed); m != nil {
			inHeader = false
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("lesson marker %q: %w", trimmed, err)
			}
			course.Lessons = append(course.Lessons, vectorstore.Lesson{
				Number: number,
				Title:  strings.TrimSpace(m[2]),
			})
			n := number
			current = &segment{lessonNumber: &n}
			segments = append(segments, current)
			continue
		}

		if current.lessonNumber != nil && len(course.Lessons) > 0 {
			if link, ok := headerValue(trimmed, "Lesson Link:"); ok && course.Lessons[len(course.Lessons)-1].Link == "" {
				course.Lessons[len(course.Lessons)-1].Link = link
				continue
			}
		}

		if inHeader {
			switch {
			case hasHeader(trimmed, "Course Title:"):
				v, _ := headerValue(trimmed, "Course Title:")
				if v != "" {
					course.Title = v
				}
				continue
			case hasHeader(trimmed, "Course Link:"):
				course.Link, _ = headerValue(trimmed, "Course Link:")
				continue
			case hasHeader(trimmed, "Course Instructor:"):
				course.Instructor, _ = headerValue(trimmed, "Course Instructor:")
				continue
			}
		}

		if trimmed == "" {
			continue
		}
		if current.text.Len() > 0 {
			current.text.WriteByte(' ')
		}
		current.text.WriteString(trimmed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	if course.Title == "" {
		return nil, fmt.Errorf("transcript has no course title")
	}

	doc := &Document{Course: course}
	index := 0
	for _, seg := range segments {
		for _, text := range SplitText(seg.text.String(), chunkSize, chunkOverlap) {
			doc.Chunks = append(doc.Chunks, vectorstore.Chunk{
				Content:      text,
				CourseTitle:  course.Title,
				LessonNumber: seg.lessonNumber,
				Index:        index,
			})
			index++
		}
	}
	return doc, nil
}

func hasHeader(line, prefix string) bool {
	return strings.HasPrefix(line, prefix)
}

func headerValue(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}
