// Package filesystem resolves lessons stored as files under
// <content root>/lessons/<category>/<identifier><ext>.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sakif/lesson-runner/internal/apperror"
	"github.com/sakif/lesson-runner/internal/model"
	"github.com/sakif/lesson-runner/internal/repository"
)

var _ repository.LessonRepository = (*Store)(nil)

// LessonsDir is the directory under the content root that holds categories.
const LessonsDir = "lessons"

// Store reads lessons from disk. It never writes.
type Store struct {
	root      string
	extension string
}

// New returns a Store rooted at contentRoot. extension includes the dot (".py").
func New(contentRoot, extension string) *Store {
	if extension == "" {
		extension = ".py"
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return &Store{root: contentRoot, extension: extension}
}

// Root returns the content root lessons run in.
func (s *Store) Root() string {
	return s.root
}

// Resolve loads one lesson. A missing lesson returns ok == false and no error.
func (s *Store) Resolve(_ context.Context, category, identifier string) (*model.Lesson, bool, error) {
	path, id, err := s.lessonPath(category, identifier)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("filesystem: reading lesson %s/%s: %w", category, id, err)
	}

	return &model.Lesson{
		Category:   category,
		Identifier: id,
		Source:     string(data),
		Path:       path,
	}, true, nil
}

// Enumerate lists the lesson identifiers of a category, sorted, without the
// extension. Files starting with "_" are helpers, not lessons. A missing
// category is empty rather than an error.
func (s *Store) Enumerate(_ context.Context, category string) ([]string, error) {
	if err := validateSegment("category", category); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(filepath.Join(s.root, LessonsDir, category))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filesystem: listing category %s: %w", category, err)
	}

	ids := []string{}
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, "_") || filepath.Ext(name) != s.extension {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, s.extension))
	}
	sort.Strings(ids)
	return ids, nil
}

// Categories lists the category directories, sorted.
func (s *Store) Categories(_ context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(filepath.Join(s.root, LessonsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filesystem: listing categories: %w", err)
	}

	cats := []string{}
	for _, de := range dirEntries {
		if de.IsDir() && !strings.HasPrefix(de.Name(), "_") && !strings.HasPrefix(de.Name(), ".") {
			cats = append(cats, de.Name())
		}
	}
	sort.Strings(cats)
	return cats, nil
}

// Info returns metadata about a lesson without running it.
func (s *Store) Info(ctx context.Context, category, identifier string) (*model.LessonInfo, bool, error) {
	lesson, ok, err := s.Resolve(ctx, category, identifier)
	if err != nil || !ok {
		return nil, ok, err
	}

	st, err := os.Stat(lesson.Path)
	if err != nil {
		return nil, false, fmt.Errorf("filesystem: stat %s: %w", lesson.Path, err)
	}

	return &model.LessonInfo{
		Name:     lesson.Identifier + s.extension,
		Category: category,
		Path:     lesson.Path,
		Size:     st.Size(),
		Summary:  Summary(lesson.Source),
	}, true, nil
}

// lessonPath validates the pair and returns the file path plus the
// identifier with any extension stripped.
func (s *Store) lessonPath(category, identifier string) (string, string, error) {
	if err := validateSegment("category", category); err != nil {
		return "", "", err
	}
	id := strings.TrimSuffix(strings.TrimSpace(identifier), s.extension)
	if err := validateSegment("identifier", id); err != nil {
		return "", "", err
	}
	return filepath.Join(s.root, LessonsDir, category, id+s.extension), id, nil
}

// validateSegment rejects anything that could escape the lessons directory.
func validateSegment(field, v string) error {
	switch {
	case v == "":
		return apperror.ValidationFailed(field, field+" is required")
	case v == "." || v == "..",
		strings.ContainsAny(v, `/\`),
		strings.ContainsRune(v, 0):
		return apperror.ValidationFailed(field, fmt.Sprintf("invalid %s %q", field, v))
	}
	return nil
}

// Summary extracts the leading documentation of a lesson: the first
// triple-quoted string if there is one, otherwise the leading block of
// "#" comment lines (a shebang is skipped).
func Summary(source string) string {
	quote, start := `"""`, strings.Index(source, `"""`)
	if i := strings.Index(source, `'''`); i >= 0 && (start < 0 || i < start) {
		quote, start = `'''`, i
	}
	if start >= 0 {
		rest := source[start+len(quote):]
		if end := strings.Index(rest, quote); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	var lines []string
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#!") && len(lines) == 0 {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			if trimmed == "" && len(lines) == 0 {
				continue
			}
			break
		}
		lines = append(lines, strings.TrimSpace(strings.TrimPrefix(trimmed, "#")))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
