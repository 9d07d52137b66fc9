// Package sqlite implements the history repository on SQLite
// (modernc.org/sqlite, pure Go). An append is one INSERT into an append-only
// table; the insertion sequence column keeps load order exact.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "outputs/history.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// ":memory:" databases are per-connection, and history has a single writer.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers (e.g. `lessonrun history`) run while a dispatch is appending.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run on
// every start.
//
// seq is the insertion order; id is the entry's xid. The full result is kept as
// JSON so new result fields never need a migration, while the columns used for
// filtering are broken out.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS history_entries (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			category    TEXT NOT NULL,
			identifier  TEXT NOT NULL,
			mode        TEXT NOT NULL,
			success     INTEGER NOT NULL,
			status      TEXT NOT NULL,
			timestamp   TEXT NOT NULL,
			result      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_lesson ON history_entries(category, identifier);
	`)
	if err != nil {
		return fmt.Errorf("creating history_entries table: %w", err)
	}
	return nil
}
