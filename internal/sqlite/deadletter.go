package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/tracewell/tracewell/internal/queue"
)

// DeadLetterRepository implements queue.DeadLetterRepository for SQLite
type DeadLetterRepository struct {
	db *DB
}

// NewDeadLetterRepository creates a new DeadLetterRepository
func NewDeadLetterRepository(db *DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Add records a dead-lettered entry.
func (r *DeadLetterRepository) Add(ctx context.Context, dl *queue.DeadLetter) error {
	failedAt := dl.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dead_letters (stream, grp, event_id, body, reason, failed_at_ns)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dl.Stream, dl.Group, dl.EventID, dl.Body, dl.Reason, failedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to add dead letter: %w", err)
	}
	return nil
}

// List returns the most recent dead letters, newest first.
func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, stream, grp, event_id, body, reason, failed_at_ns
		 FROM dead_letters ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []queue.DeadLetter
	for rows.Next() {
		var (
			dl       queue.DeadLetter
			failedNS int64
		)
		if err := rows.Scan(&dl.ID, &dl.Stream, &dl.Group, &dl.EventID, &dl.Body, &dl.Reason, &failedNS); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		dl.FailedAt = time.Unix(0, failedNS).UTC()
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letters: %w", err)
	}
	return letters, nil
}
