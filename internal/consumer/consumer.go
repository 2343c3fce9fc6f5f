package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/domain/trace"
	"github.com/tracewell/tracewell/internal/queue"
)

// Config tunes one consumer worker.
type Config struct {
	BatchSize           int
	BlockTimeout        time.Duration
	ReclaimInterval     time.Duration
	MinIdleTime         time.Duration
	MaxDeliveryAttempts int
}

// DefaultConfig returns the worker defaults: batches of 64, 2s blocking
// reads, reclaim sweep every 30s for entries idle over a minute, dead-letter
// after 5 delivery attempts.
func DefaultConfig() Config {
	return Config{
		BatchSize:           64,
		BlockTimeout:        2 * time.Second,
		ReclaimInterval:     30 * time.Second,
		MinIdleTime:         time.Minute,
		MaxDeliveryAttempts: 5,
	}
}

// Worker drains one platform's stream and drives persistence. Many workers
// may share a platform's consumer group; the group semantics hand each
// entry to exactly one live worker at a time, and idempotent insert makes
// occasional duplicate delivery harmless, so workers need no coordination
// beyond the queue itself.
type Worker struct {
	platform    event.Platform
	name        string
	client      *queue.Client
	writer      *trace.Writer
	deadLetters queue.DeadLetterRepository
	cfg         Config
	backoff     queue.Backoff
	logger      *slog.Logger
}

// NewWorker creates a worker for the platform's stream. An empty name gets a
// generated consumer name, unique per process.
func NewWorker(platform event.Platform, name string, client *queue.Client, writer *trace.Writer, deadLetters queue.DeadLetterRepository, cfg Config, logger *slog.Logger) *Worker {
	if name == "" {
		name = fmt.Sprintf("consumer-%s", uuid.NewString()[:8])
	}
	if cfg.BatchSize <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		platform:    platform,
		name:        name,
		client:      client,
		writer:      writer,
		deadLetters: deadLetters,
		cfg:         cfg,
		backoff:     queue.DefaultBackoff(),
		logger:      logger.With("platform", string(platform), "consumer", name),
	}
}

// Run drains the stream until the context is canceled. It returns nil on
// cancellation: any batch already written is acknowledged before exit, and
// anything else stays pending for reclaim by a peer or a restart.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("consumer started")
	lastReclaim := time.Now()
	readFailures := 0

	for {
		if ctx.Err() != nil {
			w.logger.Info("consumer stopped")
			return nil
		}

		if time.Since(lastReclaim) >= w.cfg.ReclaimInterval {
			lastReclaim = time.Now()
			reclaimed, err := w.client.ReclaimStale(ctx, w.platform, w.name, w.cfg.MinIdleTime)
			if err != nil {
				w.logger.Warn("reclaim failed", "error", err)
			} else if len(reclaimed) > 0 {
				w.logger.Info("reclaimed stale entries", "count", len(reclaimed))
				w.processBatch(ctx, reclaimed)
			}
		}

		deliveries, err := w.client.ReadBatch(ctx, w.platform, w.name, w.cfg.BatchSize, w.cfg.BlockTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			readFailures++
			w.logger.Warn("read batch failed", "error", err)
			if err := w.backoff.Sleep(ctx, readFailures); err != nil {
				continue
			}
			continue
		}
		readFailures = 0

		if len(deliveries) > 0 {
			w.processBatch(ctx, deliveries)
		}
	}
}

// processBatch validates, persists and acknowledges one batch. Storage
// failures are retried indefinitely with backoff and nothing acknowledged:
// the system prefers stalling over losing data, and a crash mid-retry is
// recovered through the pending list.
func (w *Worker) processBatch(ctx context.Context, deliveries []queue.Delivery) {
	valid := make([]event.Event, 0, len(deliveries))
	ackIDs := make([]int64, 0, len(deliveries))

	for _, d := range deliveries {
		if err := event.Validate(d.Event); err != nil {
			w.handleInvalid(ctx, d, err)
			continue
		}
		valid = append(valid, d.Event)
		ackIDs = append(ackIDs, d.ID)
	}

	if len(valid) > 0 {
		for attempt := 1; ; attempt++ {
			result, err := w.writer.WriteEvents(ctx, valid)
			if err == nil {
				w.logger.Debug("batch persisted", "inserted", result.Inserted, "duplicates", result.Duplicates)
				break
			}
			w.logger.Warn("batch write failed, retrying", "attempt", attempt, "error", err)
			if err := w.backoff.Sleep(ctx, attempt); err != nil {
				// Shutting down before the write landed: leave the batch
				// unacknowledged so it is redelivered.
				return
			}
		}
	}

	// A written batch is acknowledged even during shutdown; an un-acked but
	// persisted entry only costs a harmless reprocessing on restart.
	ackCtx := context.WithoutCancel(ctx)
	for _, id := range ackIDs {
		if err := w.client.Acknowledge(ackCtx, w.platform, id); err != nil {
			w.logger.Warn("acknowledge failed", "delivery_id", id, "error", err)
		}
	}
}

// handleInvalid routes a poison message. Before the delivery-attempt limit
// the entry is left unacknowledged for redelivery; at the limit it is
// dead-lettered and acknowledged so it cannot block the stream.
func (w *Worker) handleInvalid(ctx context.Context, d queue.Delivery, cause error) {
	attempts := d.Event.RetryCount + 1
	if attempts < w.cfg.MaxDeliveryAttempts {
		w.logger.Debug("invalid event, awaiting redelivery", "event_id", d.Event.EventID, "attempts", attempts, "error", cause)
		return
	}

	body, _ := json.Marshal(d.Event)
	dl := &queue.DeadLetter{
		Stream:  queue.StreamForPlatform(w.platform),
		Group:   queue.GroupForPlatform(w.platform),
		EventID: d.Event.EventID,
		Body:    string(body),
		Reason:  cause.Error(),
	}
	if err := w.deadLetters.Add(ctx, dl); err != nil {
		// Keep the entry pending rather than lose it.
		w.logger.Error("dead-letter write failed", "event_id", d.Event.EventID, "error", err)
		return
	}
	if err := w.client.Acknowledge(ctx, w.platform, d.ID); err != nil {
		w.logger.Warn("acknowledge after dead-letter failed", "delivery_id", d.ID, "error", err)
		return
	}
	w.logger.Warn("event dead-lettered", "event_id", d.Event.EventID, "reason", cause.Error())
}
