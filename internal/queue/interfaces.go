package queue

import (
	"context"
	"time"

	"github.com/tracewell/tracewell/internal/domain/event"
)

// StreamRepository persists the durable stream: appended entries, per-group
// checkpoints, and the pending (delivered-but-unacknowledged) entry list.
// Checkpoints are owned exclusively by this layer; consumers only move them
// through ReadBatch, Acknowledge and ReclaimStale.
type StreamRepository interface {
	// Append adds an entry to the named stream.
	Append(ctx context.Context, stream string, ev event.Event) error

	// ReadBatch returns up to maxCount entries past the group's checkpoint,
	// advancing the checkpoint and registering each entry as pending for the
	// named consumer. Returns an empty slice when the stream is drained.
	ReadBatch(ctx context.Context, stream, group, consumer string, maxCount int) ([]Delivery, error)

	// Acknowledge removes a delivered entry from the group's pending list.
	// Idempotent: acknowledging an unknown or already-acknowledged delivery
	// is a no-op.
	Acknowledge(ctx context.Context, stream, group string, deliveryID int64) error

	// ReclaimStale re-assigns entries pending longer than minIdle to the
	// calling consumer, bumping their delivery count.
	ReclaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration) ([]Delivery, error)

	// Depth returns the total number of entries appended to the stream.
	Depth(ctx context.Context, stream string) (int64, error)

	// PendingCount returns the number of delivered-but-unacknowledged
	// entries for the group.
	PendingCount(ctx context.Context, stream, group string) (int64, error)
}

// DeadLetterRepository persists dead-lettered entries.
type DeadLetterRepository interface {
	Add(ctx context.Context, dl *DeadLetter) error
	List(ctx context.Context, limit int) ([]DeadLetter, error)
}
