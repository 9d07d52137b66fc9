package repository

import (
	"context"

	"github.com/sakif/lesson-runner/internal/model"
)

// HistoryRepository is the durable, append-only log of dispatch attempts.
type HistoryRepository interface {
	// Load returns every entry in insertion order. A fresh store yields an empty slice.
	Load(ctx context.Context) ([]model.HistoryEntry, error)
	// Append persists one entry before returning. No batching.
	Append(ctx context.Context, entry model.HistoryEntry) error
	Close() error
}

// LessonRepository resolves lessons by (category, identifier).
// A missing lesson is a normal outcome, reported as ok == false.
type LessonRepository interface {
	Resolve(ctx context.Context, category, identifier string) (lesson *model.Lesson, ok bool, err error)
	Enumerate(ctx context.Context, category string) ([]string, error)
	Categories(ctx context.Context) ([]string, error)
	Info(ctx context.Context, category, identifier string) (info *model.LessonInfo, ok bool, err error)
}
