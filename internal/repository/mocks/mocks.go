package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/domain/trace"
	"github.com/tracewell/tracewell/internal/queue"
)

// StreamRepository is a mock for queue.StreamRepository.
type StreamRepository struct {
	mock.Mock
}

func (m *StreamRepository) Append(ctx context.Context, stream string, ev event.Event) error {
	args := m.Called(ctx, stream, ev)
	return args.Error(0)
}

func (m *StreamRepository) ReadBatch(ctx context.Context, stream, group, consumer string, maxCount int) ([]queue.Delivery, error) {
	args := m.Called(ctx, stream, group, consumer, maxCount)
	if deliveries, ok := args.Get(0).([]queue.Delivery); ok {
		return deliveries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StreamRepository) Acknowledge(ctx context.Context, stream, group string, deliveryID int64) error {
	args := m.Called(ctx, stream, group, deliveryID)
	return args.Error(0)
}

func (m *StreamRepository) ReclaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration) ([]queue.Delivery, error) {
	args := m.Called(ctx, stream, group, consumer, minIdle)
	if deliveries, ok := args.Get(0).([]queue.Delivery); ok {
		return deliveries, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StreamRepository) Depth(ctx context.Context, stream string) (int64, error) {
	args := m.Called(ctx, stream)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StreamRepository) PendingCount(ctx context.Context, stream, group string) (int64, error) {
	args := m.Called(ctx, stream, group)
	return args.Get(0).(int64), args.Error(1)
}

// TraceRepository is a mock for trace.Repository.
type TraceRepository struct {
	mock.Mock
}

func (m *TraceRepository) WriteBatch(ctx context.Context, records []*trace.Record) (int, int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *TraceRepository) Timeline(ctx context.Context, sessionID string, afterSequence int64, limit int) ([]trace.Record, error) {
	args := m.Called(ctx, sessionID, afterSequence, limit)
	if records, ok := args.Get(0).([]trace.Record); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TraceRepository) ListBySession(ctx context.Context, sessionID string) ([]trace.Record, error) {
	args := m.Called(ctx, sessionID)
	if records, ok := args.Get(0).([]trace.Record); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TraceRepository) GetByEventID(ctx context.Context, eventID string) (*trace.Record, error) {
	args := m.Called(ctx, eventID)
	if rec, ok := args.Get(0).(*trace.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TraceRepository) GetBySequence(ctx context.Context, sessionID string, sequence int64) (*trace.Record, error) {
	args := m.Called(ctx, sessionID, sequence)
	if rec, ok := args.Get(0).(*trace.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TraceRepository) Neighbors(ctx context.Context, sessionID string, center time.Time, tolerance time.Duration, excludeEventID string) ([]trace.Record, error) {
	args := m.Called(ctx, sessionID, center, tolerance, excludeEventID)
	if records, ok := args.Get(0).([]trace.Record); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TraceRepository) Sessions(ctx context.Context) ([]trace.SessionSummary, error) {
	args := m.Called(ctx)
	if sessions, ok := args.Get(0).([]trace.SessionSummary); ok {
		return sessions, args.Error(1)
	}
	return nil, args.Error(1)
}

// DeadLetterRepository is a mock for queue.DeadLetterRepository.
type DeadLetterRepository struct {
	mock.Mock
}

func (m *DeadLetterRepository) Add(ctx context.Context, dl *queue.DeadLetter) error {
	args := m.Called(ctx, dl)
	return args.Error(0)
}

func (m *DeadLetterRepository) List(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	args := m.Called(ctx, limit)
	if letters, ok := args.Get(0).([]queue.DeadLetter); ok {
		return letters, args.Error(1)
	}
	return nil, args.Error(1)
}
