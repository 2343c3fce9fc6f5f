package trace

import (
	"context"
	"time"
)

// Repository provides persistence for trace records.
type Repository interface {
	WriteBatch(ctx context.Context, records []*Record) (inserted, duplicates int, err error)
	Timeline(ctx context.Context, sessionID string, afterSequence int64, limit int) ([]Record, error)
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
	GetByEventID(ctx context.Context, eventID string) (*Record, error)
	GetBySequence(ctx context.Context, sessionID string, sequence int64) (*Record, error)
	Neighbors(ctx context.Context, sessionID string, center time.Time, tolerance time.Duration, excludeEventID string) ([]Record, error)
	Sessions(ctx context.Context) ([]SessionSummary, error)
}
