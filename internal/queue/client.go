package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tracewell/tracewell/internal/domain/event"
)

const (
	// enqueueAttempts bounds producer-side retries. Producers favor
	// availability over delivery: a dropped event beats a hung IDE action.
	enqueueAttempts = 3
	enqueueTimeout  = 250 * time.Millisecond
	enqueueDelay    = 50 * time.Millisecond

	// pollInterval paces the cooperative blocking loop in ReadBatch.
	pollInterval = 100 * time.Millisecond
)

// Client is the queue API for both producers and consumers. Safe for use
// from many goroutines; it holds no state beyond the repository handle.
type Client struct {
	streams StreamRepository
	logger  *slog.Logger
}

// NewClient creates a queue client over the given stream repository.
func NewClient(streams StreamRepository, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{streams: streams, logger: logger}
}

// Enqueue appends an event to the platform's stream. It never returns an
// error: failures are absorbed after a small bounded number of quick retries
// and reported as false, so producers can fail silently without blocking
// their host process. A missing event ID is assigned here, before the first
// append attempt, so every retry and redelivery carries the same ID.
func (c *Client) Enqueue(ctx context.Context, ev event.Event, platform event.Platform, sessionID string) bool {
	ev.Platform = platform
	if sessionID != "" {
		ev.SessionID = sessionID
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	stream := StreamForPlatform(platform)
	for attempt := 1; attempt <= enqueueAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
		err := c.streams.Append(attemptCtx, stream, ev)
		cancel()
		if err == nil {
			return true
		}
		c.logger.Debug("enqueue attempt failed", "stream", stream, "attempt", attempt, "error", err)
		if attempt < enqueueAttempts {
			select {
			case <-time.After(enqueueDelay):
			case <-ctx.Done():
				return false
			}
		}
	}
	c.logger.Warn("dropping event, queue unreachable", "stream", stream, "event_id", ev.EventID)
	return false
}

// ReadBatch pulls up to maxCount new entries for the group, blocking up to
// blockTimeout when none are available. The block is a cooperative poll
// loop, so cancellation is honored between polls.
func (c *Client) ReadBatch(ctx context.Context, platform event.Platform, consumer string, maxCount int, blockTimeout time.Duration) ([]Delivery, error) {
	stream := StreamForPlatform(platform)
	group := GroupForPlatform(platform)
	deadline := time.Now().Add(blockTimeout)

	for {
		deliveries, err := c.streams.ReadBatch(ctx, stream, group, consumer, maxCount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(deliveries) > 0 || blockTimeout <= 0 || !time.Now().Before(deadline) {
			return deliveries, nil
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Acknowledge commits that a delivered entry was durably handled.
func (c *Client) Acknowledge(ctx context.Context, platform event.Platform, deliveryID int64) error {
	stream := StreamForPlatform(platform)
	group := GroupForPlatform(platform)
	if err := c.streams.Acknowledge(ctx, stream, group, deliveryID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ReclaimStale re-assigns entries abandoned by crashed peers to the calling
// consumer. This is the crash-recovery path for unacknowledged deliveries.
func (c *Client) ReclaimStale(ctx context.Context, platform event.Platform, consumer string, minIdle time.Duration) ([]Delivery, error) {
	stream := StreamForPlatform(platform)
	group := GroupForPlatform(platform)
	deliveries, err := c.streams.ReclaimStale(ctx, stream, group, consumer, minIdle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return deliveries, nil
}

// Stats describes a platform stream's current size.
type Stats struct {
	Depth   int64 `json:"depth"`
	Pending int64 `json:"pending"`
}

// Stats reports the stream depth and pending count for a platform.
func (c *Client) Stats(ctx context.Context, platform event.Platform) (Stats, error) {
	stream := StreamForPlatform(platform)
	group := GroupForPlatform(platform)
	depth, err := c.streams.Depth(ctx, stream)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	pending, err := c.streams.PendingCount(ctx, stream, group)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Stats{Depth: depth, Pending: pending}, nil
}
