package trace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tracewell/tracewell/internal/domain/event"
)

// Writer persists validated event batches as trace records. Exactly-once
// effect under at-least-once delivery lives here: inserts are keyed on the
// producer-assigned event ID, so redelivered events collapse into no-ops.
type Writer struct {
	repo   Repository
	logger *slog.Logger
}

// NewWriter creates a new batch writer.
func NewWriter(repo Repository, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{repo: repo, logger: logger}
}

// WriteResult reports the outcome of one batch write.
type WriteResult struct {
	Inserted   int
	Duplicates int
}

// WriteEvents persists a batch of validated events atomically. Either every
// non-duplicate record in the batch becomes visible or none do; a storage
// failure mid-batch leaves the store unchanged so the caller can retry the
// same batch without acknowledging.
func (w *Writer) WriteEvents(ctx context.Context, events []event.Event) (WriteResult, error) {
	if len(events) == 0 {
		return WriteResult{}, nil
	}

	records := make([]*Record, 0, len(events))
	for _, ev := range events {
		records = append(records, FromEvent(ev))
	}

	inserted, duplicates, err := w.repo.WriteBatch(ctx, records)
	if err != nil {
		return WriteResult{}, fmt.Errorf("writing trace batch: %w", err)
	}

	if duplicates > 0 {
		w.logger.Debug("skipped duplicate events", "count", duplicates)
	}
	return WriteResult{Inserted: inserted, Duplicates: duplicates}, nil
}
