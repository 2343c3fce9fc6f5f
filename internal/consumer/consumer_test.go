package consumer_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracewell/tracewell/internal/consumer"
	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/domain/trace"
	"github.com/tracewell/tracewell/internal/queue"
	"github.com/tracewell/tracewell/internal/sqlite"
)

type pipeline struct {
	db      *sqlite.DB
	streams *sqlite.StreamRepository
	traces  *sqlite.TraceRepository
	letters *sqlite.DeadLetterRepository
	client  *queue.Client
	writer  *trace.Writer
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	// Shared cache keeps the pooled connections on one in-memory database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())

	streams := sqlite.NewStreamRepository(db)
	traces := sqlite.NewTraceRepository(db)
	return &pipeline{
		db:      db,
		streams: streams,
		traces:  traces,
		letters: sqlite.NewDeadLetterRepository(db),
		client:  queue.NewClient(streams, nil),
		writer:  trace.NewWriter(traces, nil),
	}
}

func validEvent(sessionID string) event.Event {
	return event.Event{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Platform:  event.PlatformClaudeCode,
		SessionID: sessionID,
		EventType: event.TypeUserPrompt,
		HookType:  event.HookUserPromptSubmit,
		Payload:   map[string]any{"prompt": "hello"},
	}
}

// runWorker drives the worker loop for long enough to drain the stream.
func runWorker(t *testing.T, w *consumer.Worker, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, w.Run(ctx))
}

func fastConfig() consumer.Config {
	cfg := consumer.DefaultConfig()
	cfg.BlockTimeout = 50 * time.Millisecond
	cfg.ReclaimInterval = time.Hour
	return cfg
}

func TestWorker_PersistsEnqueuedEvents(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, p.client.Enqueue(ctx, validEvent("sess-1"), event.PlatformClaudeCode, "sess-1"))
	}

	w := consumer.NewWorker(event.PlatformClaudeCode, "c1", p.client, p.writer, p.letters, fastConfig(), nil)
	runWorker(t, w, 500*time.Millisecond)

	records, err := p.traces.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), records[0].Sequence)
	assert.Equal(t, int64(2), records[1].Sequence)
	assert.Equal(t, int64(3), records[2].Sequence)

	// Everything acknowledged.
	stats, err := p.client.Stats(ctx, event.PlatformClaudeCode)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}

func TestWorker_IdempotentUnderRedelivery(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	ev := validEvent("sess-dup")
	stream := queue.StreamForPlatform(event.PlatformClaudeCode)
	require.NoError(t, p.streams.Append(ctx, stream, ev))
	require.NoError(t, p.streams.Append(ctx, stream, ev))

	w := consumer.NewWorker(event.PlatformClaudeCode, "c1", p.client, p.writer, p.letters, fastConfig(), nil)
	runWorker(t, w, 500*time.Millisecond)

	records, err := p.traces.ListBySession(ctx, "sess-dup")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ev.EventID, records[0].EventID)
}

func TestWorker_ReclaimRecoversCrashedConsumer(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	ev := validEvent("sess-crash")
	stream := queue.StreamForPlatform(event.PlatformClaudeCode)
	group := queue.GroupForPlatform(event.PlatformClaudeCode)
	require.NoError(t, p.streams.Append(ctx, stream, ev))

	// A consumer that read the entry and died before persisting it.
	delivered, err := p.streams.ReadBatch(ctx, stream, group, "dead-consumer", 10)
	require.NoError(t, err)
	require.Len(t, delivered, 1)

	cfg := fastConfig()
	cfg.ReclaimInterval = 10 * time.Millisecond
	cfg.MinIdleTime = 0

	w := consumer.NewWorker(event.PlatformClaudeCode, "survivor", p.client, p.writer, p.letters, cfg, nil)
	runWorker(t, w, 500*time.Millisecond)

	records, err := p.traces.ListBySession(ctx, "sess-crash")
	require.NoError(t, err)
	require.Len(t, records, 1)

	stats, err := p.client.Stats(ctx, event.PlatformClaudeCode)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}

func TestWorker_DeadLettersPoisonEvent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	poison := validEvent("")
	poison.SessionID = "" // fails validation on every delivery
	stream := queue.StreamForPlatform(event.PlatformClaudeCode)
	require.NoError(t, p.streams.Append(ctx, stream, poison))
	healthy := validEvent("sess-ok")
	require.NoError(t, p.streams.Append(ctx, stream, healthy))

	cfg := fastConfig()
	cfg.ReclaimInterval = 10 * time.Millisecond
	cfg.MinIdleTime = 0
	cfg.MaxDeliveryAttempts = 2

	w := consumer.NewWorker(event.PlatformClaudeCode, "c1", p.client, p.writer, p.letters, cfg, nil)
	runWorker(t, w, time.Second)

	// The healthy event landed despite sharing a batch with the poison one.
	records, err := p.traces.ListBySession(ctx, "sess-ok")
	require.NoError(t, err)
	require.Len(t, records, 1)

	// The poison event was dead-lettered after exhausting its attempts and
	// acknowledged so it no longer blocks the stream.
	letters, err := p.letters.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, poison.EventID, letters[0].EventID)
	assert.Contains(t, letters[0].Reason, "session_id")

	stats, err := p.client.Stats(ctx, event.PlatformClaudeCode)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)

	// Nothing invalid reached the trace store.
	_, err = p.traces.GetByEventID(ctx, poison.EventID)
	require.Error(t, err)
}
