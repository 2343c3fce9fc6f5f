package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps readers from blocking the batch writer; busy_timeout keeps
	// concurrent writers queueing instead of failing fast.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. Idempotent; safe to run at every start.
func (db *DB) RunMigrations() error {
	migration := `
-- Durable stream entries. delivery_id is the queue-level identifier handed
-- to consumers; it is unrelated to the producer-assigned event_id carried
-- inside body.
CREATE TABLE IF NOT EXISTS stream_entries (
    delivery_id INTEGER PRIMARY KEY AUTOINCREMENT,
    stream TEXT NOT NULL,
    event_id TEXT NOT NULL,
    body TEXT NOT NULL,
    enqueued_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stream_entries ON stream_entries(stream, delivery_id);

-- Consumer-group checkpoints: the last delivery handed out per group.
CREATE TABLE IF NOT EXISTS stream_groups (
    stream TEXT NOT NULL,
    grp TEXT NOT NULL,
    last_delivered INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (stream, grp)
);

-- Delivered-but-unacknowledged entries per group.
CREATE TABLE IF NOT EXISTS stream_pending (
    stream TEXT NOT NULL,
    grp TEXT NOT NULL,
    delivery_id INTEGER NOT NULL,
    consumer TEXT NOT NULL,
    delivered_at_ns INTEGER NOT NULL,
    delivery_count INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (stream, grp, delivery_id)
);
CREATE INDEX IF NOT EXISTS idx_pending_idle ON stream_pending(stream, grp, delivered_at_ns);

-- Dead-lettered entries, retained for diagnostics.
CREATE TABLE IF NOT EXISTS dead_letters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stream TEXT NOT NULL,
    grp TEXT NOT NULL,
    event_id TEXT NOT NULL,
    body TEXT NOT NULL,
    reason TEXT NOT NULL,
    failed_at_ns INTEGER NOT NULL
);

-- Append-only trace log. The UNIQUE event_id constraint is what turns
-- at-least-once delivery into exactly-once storage.
CREATE TABLE IF NOT EXISTS trace_records (
    session_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    event_id TEXT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    platform TEXT NOT NULL,
    ts_ns INTEGER NOT NULL,
    metadata TEXT,
    payload TEXT,
    PRIMARY KEY (session_id, sequence)
);
CREATE INDEX IF NOT EXISTS idx_trace_session_ts ON trace_records(session_id, ts_ns);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
