package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/lesson-runner/internal/executor"
	"github.com/sakif/lesson-runner/internal/model"
	"github.com/sakif/lesson-runner/internal/repository"
)

var _ repository.HistoryRepository = (*DB)(nil)

// Append inserts one entry. Rows are never updated or deleted.
func (db *DB) Append(ctx context.Context, entry model.HistoryEntry) error {
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("sqlite: encoding result for %s: %w", entry.ID, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO history_entries (id, category, identifier, mode, success, status, timestamp, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Category,
		entry.Identifier,
		string(entry.Mode),
		entry.Result.Success,
		entry.Result.StatusLabel,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(result),
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending history entry %s: %w", entry.ID, err)
	}
	return nil
}

// Load returns every entry in insertion order.
func (db *DB) Load(ctx context.Context) ([]model.HistoryEntry, error) {
	return db.query(ctx,
		`SELECT id, category, identifier, mode, timestamp, result
		 FROM history_entries
		 ORDER BY seq`)
}

// ListByLesson returns the attempts for one lesson, oldest first.
func (db *DB) ListByLesson(ctx context.Context, category, identifier string) ([]model.HistoryEntry, error) {
	return db.query(ctx,
		`SELECT id, category, identifier, mode, timestamp, result
		 FROM history_entries
		 WHERE category = ? AND identifier = ?
		 ORDER BY seq`,
		category, identifier)
}

func (db *DB) query(ctx context.Context, q string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading history: %w", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e         model.HistoryEntry
			mode      string
			timestamp string
			result    string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Identifier, &mode, &timestamp, &result); err != nil {
			return nil, fmt.Errorf("sqlite: scanning history row: %w", err)
		}
		e.Mode = executor.Mode(mode)

		e.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parsing timestamp of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(result), &e.Result); err != nil {
			return nil, fmt.Errorf("sqlite: decoding result of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating history: %w", err)
	}
	return entries, nil
}
