// Package jsonfile stores execution history as a single JSON array on disk.
//
// Every Append reads the whole file, adds one entry and writes the whole array
// back. The new array goes to a temp file in the same directory which is then
// renamed over the old one, so a crash leaves either the old or the new log,
// never half of one.
//
// Unparsable files are moved aside to "<path>.corrupt-<unix>" and history
// starts over empty; the bad file is kept for inspection, not deleted.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sakif/lesson-runner/internal/model"
	"github.com/sakif/lesson-runner/internal/repository"
)

var _ repository.HistoryRepository = (*Store)(nil)

// Store is a HistoryRepository backed by one JSON file.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// Open prepares a store at path, creating the parent directory if needed.
// The file itself is created on the first Append.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonfile: empty history path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating history directory: %w", err)
	}
	return &Store{
		path:   path,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load returns all entries in the order they were appended.
func (s *Store) Load(_ context.Context) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Append adds entry to the end of the log and rewrites the file.
func (s *Store) Append(_ context.Context, entry model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	return s.write(append(entries, entry))
}

// Close is a no-op; the file is not held open between calls.
func (s *Store) Close() error {
	return nil
}

func (s *Store) read() ([]model.HistoryEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.HistoryEntry{}, nil
	}

	var entries []model.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		if qerr := s.quarantine(err); qerr != nil {
			return nil, qerr
		}
		return []model.HistoryEntry{}, nil
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return entries, nil
}

func (s *Store) quarantine(cause error) error {
	dest := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, dest); err != nil {
		return fmt.Errorf("jsonfile: moving unreadable history aside: %w", err)
	}
	s.logger.Warn("history file was unreadable; starting with empty history",
		slog.String("path", s.path),
		slog.String("movedTo", dest),
		slog.String("error", cause.Error()),
	)
	return nil
}

func (s *Store) write(entries []model.HistoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("jsonfile: writing history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("jsonfile: syncing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("jsonfile: closing history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("jsonfile: replacing history: %w", err)
	}
	return nil
}
