package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/queue"
)

// StreamRepository implements queue.StreamRepository for SQLite
type StreamRepository struct {
	db *DB
}

// NewStreamRepository creates a new StreamRepository
func NewStreamRepository(db *DB) *StreamRepository {
	return &StreamRepository{db: db}
}

// Append adds an entry to the named stream.
func (r *StreamRepository) Append(ctx context.Context, stream string, ev event.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO stream_entries (stream, event_id, body, enqueued_at_ns) VALUES (?, ?, ?, ?)`,
		stream, ev.EventID, string(body), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// ReadBatch hands out up to maxCount entries past the group's checkpoint,
// advancing the checkpoint and registering each entry as pending for the
// consumer, all in one transaction.
func (r *StreamRepository) ReadBatch(ctx context.Context, stream, group, consumer string, maxCount int) ([]queue.Delivery, error) {
	if maxCount <= 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO stream_groups (stream, grp, last_delivered) VALUES (?, ?, 0)`,
		stream, group,
	); err != nil {
		return nil, fmt.Errorf("failed to register group: %w", err)
	}

	var checkpoint int64
	if err := tx.QueryRowContext(ctx,
		`SELECT last_delivered FROM stream_groups WHERE stream = ? AND grp = ?`,
		stream, group,
	).Scan(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT delivery_id, body FROM stream_entries
		 WHERE stream = ? AND delivery_id > ?
		 ORDER BY delivery_id ASC LIMIT ?`,
		stream, checkpoint, maxCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	deliveries, err := scanDeliveries(rows)
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, nil
	}

	now := time.Now().UnixNano()
	for i := range deliveries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stream_pending (stream, grp, delivery_id, consumer, delivered_at_ns, delivery_count)
			 VALUES (?, ?, ?, ?, ?, 1)`,
			stream, group, deliveries[i].ID, consumer, now,
		); err != nil {
			return nil, fmt.Errorf("failed to record pending entry: %w", err)
		}
	}

	last := deliveries[len(deliveries)-1].ID
	if _, err := tx.ExecContext(ctx,
		`UPDATE stream_groups SET last_delivered = ? WHERE stream = ? AND grp = ?`,
		last, stream, group,
	); err != nil {
		return nil, fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read: %w", err)
	}
	return deliveries, nil
}

// Acknowledge removes a delivery from the group's pending list. A missing
// row is not an error, so repeated acknowledgments are harmless.
func (r *StreamRepository) Acknowledge(ctx context.Context, stream, group string, deliveryID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM stream_pending WHERE stream = ? AND grp = ? AND delivery_id = ?`,
		stream, group, deliveryID,
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge: %w", err)
	}
	return nil
}

// ReclaimStale re-assigns entries idle longer than minIdle to the calling
// consumer and bumps their delivery count.
func (r *StreamRepository) ReclaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration) ([]queue.Delivery, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reclaim: %w", err)
	}
	defer tx.Rollback()

	cutoff := time.Now().Add(-minIdle).UnixNano()
	rows, err := tx.QueryContext(ctx,
		`SELECT p.delivery_id, e.body, p.delivery_count
		 FROM stream_pending p
		 JOIN stream_entries e ON e.delivery_id = p.delivery_id
		 WHERE p.stream = ? AND p.grp = ? AND p.delivered_at_ns <= ?
		 ORDER BY p.delivery_id ASC`,
		stream, group, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read stale entries: %w", err)
	}

	var deliveries []queue.Delivery
	for rows.Next() {
		var (
			id    int64
			body  string
			count int
		)
		if err := rows.Scan(&id, &body, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stale entry: %w", err)
		}
		ev, err := decodeEvent(body)
		if err != nil {
			rows.Close()
			return nil, err
		}
		// The reclaim itself is a new delivery attempt.
		ev.RetryCount = count
		deliveries = append(deliveries, queue.Delivery{ID: id, Event: ev})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating stale entries: %w", err)
	}
	rows.Close()

	if len(deliveries) == 0 {
		return nil, nil
	}

	now := time.Now().UnixNano()
	for _, d := range deliveries {
		if _, err := tx.ExecContext(ctx,
			`UPDATE stream_pending
			 SET consumer = ?, delivered_at_ns = ?, delivery_count = delivery_count + 1
			 WHERE stream = ? AND grp = ? AND delivery_id = ?`,
			consumer, now, stream, group, d.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to reassign entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reclaim: %w", err)
	}
	return deliveries, nil
}

// Depth returns the total number of entries appended to the stream.
func (r *StreamRepository) Depth(ctx context.Context, stream string) (int64, error) {
	var depth int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stream_entries WHERE stream = ?`, stream,
	).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return depth, nil
}

// PendingCount returns the group's delivered-but-unacknowledged entry count.
func (r *StreamRepository) PendingCount(ctx context.Context, stream, group string) (int64, error) {
	var pending int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stream_pending WHERE stream = ? AND grp = ?`, stream, group,
	).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending: %w", err)
	}
	return pending, nil
}

func scanDeliveries(rows *sql.Rows) ([]queue.Delivery, error) {
	defer rows.Close()

	var deliveries []queue.Delivery
	for rows.Next() {
		var (
			id   int64
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		ev, err := decodeEvent(body)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, queue.Delivery{ID: id, Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return deliveries, nil
}

func decodeEvent(body string) (event.Event, error) {
	var ev event.Event
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return event.Event{}, fmt.Errorf("failed to decode entry body: %w", err)
	}
	return ev, nil
}
