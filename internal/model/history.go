// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/rs/xid"

	"github.com/sakif/lesson-runner/internal/executor"
)

// HistoryEntry records one dispatch attempt, successful or not.
//
// Entries are append-only: created when an attempt completes, persisted right
// away, never edited or removed. The JSON tags are the on-disk history format.
type HistoryEntry struct {
	ID         string                   `json:"id"`
	Category   string                   `json:"category"`
	Identifier string                   `json:"identifier"`
	Mode       executor.Mode            `json:"mode"`
	Timestamp  time.Time                `json:"timestamp"`
	Result     executor.ExecutionResult `json:"result"`
}

// NewHistoryEntry wraps a result with a fresh ID and the completion time.
//
// xid IDs are 20 URL-safe chars and sort by creation time, which keeps IDs
// in the same order as the log itself.
func NewHistoryEntry(req executor.ExecutionRequest, res executor.ExecutionResult, at time.Time) HistoryEntry {
	return HistoryEntry{
		ID:         xid.NewWithTime(at).String(),
		Category:   req.Category,
		Identifier: req.Identifier,
		Mode:       res.Mode,
		Timestamp:  at.UTC(),
		Result:     res,
	}
}

// Ref returns the lesson the entry belongs to.
func (e HistoryEntry) Ref() executor.LessonRef {
	return executor.LessonRef{Category: e.Category, Identifier: e.Identifier}
}
