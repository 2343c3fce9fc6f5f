package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/domain/trace"
	"github.com/tracewell/tracewell/internal/repository"
)

// TraceRepository implements trace.Repository for SQLite
type TraceRepository struct {
	db *DB

	// Serializes batch writes. Sequence assignment reads MAX(sequence) and
	// inserts in the same transaction; serializing writers keeps two batches
	// for the same session from racing on the same sequence. Reads are
	// unaffected (WAL).
	writeMu sync.Mutex
}

// NewTraceRepository creates a new TraceRepository
func NewTraceRepository(db *DB) *TraceRepository {
	return &TraceRepository{db: db}
}

// WriteBatch inserts records atomically, assigning per-session sequences
// inside the transaction. Records whose event_id already exists are counted
// as duplicates and skipped; the rest of the batch still commits. A storage
// failure rolls the whole batch back.
func (r *TraceRepository) WriteBatch(ctx context.Context, records []*trace.Record) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	defer tx.Rollback()

	nextSeq := make(map[string]int64)
	inserted, duplicates := 0, 0

	for _, rec := range records {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM trace_records WHERE event_id = ?)`, rec.EventID,
		).Scan(&exists)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to check event id: %w", err)
		}
		if exists {
			duplicates++
			continue
		}

		seq, ok := nextSeq[rec.SessionID]
		if !ok {
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(sequence), 0) FROM trace_records WHERE session_id = ?`, rec.SessionID,
			).Scan(&seq); err != nil {
				return 0, 0, fmt.Errorf("failed to read max sequence: %w", err)
			}
		}
		seq++
		nextSeq[rec.SessionID] = seq
		rec.Sequence = seq

		metadata, err := encodeMap(rec.Metadata)
		if err != nil {
			return 0, 0, err
		}
		payload, err := encodeMap(rec.Payload)
		if err != nil {
			return 0, 0, err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO trace_records (session_id, sequence, event_id, event_type, platform, ts_ns, metadata, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.SessionID, rec.Sequence, rec.EventID, string(rec.EventType), string(rec.Platform),
			rec.Timestamp.UnixNano(), metadata, payload,
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Concurrent writer won the event_id race; duplicate, not a failure.
				duplicates++
				continue
			}
			return 0, 0, fmt.Errorf("failed to insert record: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return inserted, duplicates, nil
}

const recordColumns = `session_id, sequence, event_id, event_type, platform, ts_ns, metadata, payload`

// Timeline returns up to limit records with sequence strictly greater than
// afterSequence, ascending.
func (r *TraceRepository) Timeline(ctx context.Context, sessionID string, afterSequence int64, limit int) ([]trace.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM trace_records
		 WHERE session_id = ? AND sequence > ?
		 ORDER BY sequence ASC LIMIT ?`,
		sessionID, afterSequence, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	return scanRecords(rows)
}

// ListBySession returns every record for the session ordered by event timestamp.
func (r *TraceRepository) ListBySession(ctx context.Context, sessionID string) ([]trace.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM trace_records
		 WHERE session_id = ?
		 ORDER BY ts_ns ASC, sequence ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}
	return scanRecords(rows)
}

// GetByEventID returns the record with the given event ID.
func (r *TraceRepository) GetByEventID(ctx context.Context, eventID string) (*trace.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM trace_records WHERE event_id = ?`, eventID,
	)
	return scanRecord(row)
}

// GetBySequence returns the record at the given sequence. With an empty
// session ID the lookup spans sessions and returns the earliest-inserted
// match.
func (r *TraceRepository) GetBySequence(ctx context.Context, sessionID string, sequence int64) (*trace.Record, error) {
	if sessionID != "" {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM trace_records WHERE session_id = ? AND sequence = ?`,
			sessionID, sequence,
		)
		return scanRecord(row)
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM trace_records WHERE sequence = ? ORDER BY rowid ASC LIMIT 1`,
		sequence,
	)
	return scanRecord(row)
}

// Neighbors returns the session's other records within tolerance of center,
// ordered by timestamp.
func (r *TraceRepository) Neighbors(ctx context.Context, sessionID string, center time.Time, tolerance time.Duration, excludeEventID string) ([]trace.Record, error) {
	lo := center.Add(-tolerance).UnixNano()
	hi := center.Add(tolerance).UnixNano()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM trace_records
		 WHERE session_id = ? AND event_id <> ? AND ts_ns BETWEEN ? AND ?
		 ORDER BY ts_ns ASC, sequence ASC`,
		sessionID, excludeEventID, lo, hi,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	return scanRecords(rows)
}

// Sessions summarizes every session in the store.
func (r *TraceRepository) Sessions(ctx context.Context) ([]trace.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, MIN(platform), COUNT(*), MIN(ts_ns), MAX(ts_ns)
		 FROM trace_records
		 GROUP BY session_id
		 ORDER BY MAX(ts_ns) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []trace.SessionSummary
	for rows.Next() {
		var (
			summary         trace.SessionSummary
			firstNS, lastNS int64
		)
		if err := rows.Scan(&summary.SessionID, &summary.Platform, &summary.RecordCount, &firstNS, &lastNS); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		summary.FirstEvent = time.Unix(0, firstNS).UTC()
		summary.LastEvent = time.Unix(0, lastNS).UTC()
		sessions = append(sessions, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecordFrom(scanner rowScanner) (*trace.Record, error) {
	var (
		rec      trace.Record
		evType   string
		platform string
		tsNS     int64
		metadata sql.NullString
		payload  sql.NullString
	)
	err := scanner.Scan(&rec.SessionID, &rec.Sequence, &rec.EventID, &evType, &platform, &tsNS, &metadata, &payload)
	if err != nil {
		return nil, err
	}
	rec.EventType = event.Type(evType)
	rec.Platform = event.Platform(platform)
	rec.Timestamp = time.Unix(0, tsNS).UTC()
	if rec.Metadata, err = decodeMap(metadata); err != nil {
		return nil, err
	}
	if rec.Payload, err = decodeMap(payload); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanRecord(row *sql.Row) (*trace.Record, error) {
	rec, err := scanRecordFrom(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]trace.Record, error) {
	defer rows.Close()

	var records []trace.Record
	for rows.Next() {
		rec, err := scanRecordFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func encodeMap(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMap(column sql.NullString) (map[string]any, error) {
	if !column.Valid || column.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(column.String), &m); err != nil {
		return nil, fmt.Errorf("failed to decode JSON column: %w", err)
	}
	return m, nil
}
