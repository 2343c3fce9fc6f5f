package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tracewell/tracewell/internal/repository"
)

const (
	defaultTimelineLimit = 50
	maxTimelineLimit     = 500
)

// Service answers trace-analysis queries over the persisted log. All
// operations are read-only: they never block, and are never blocked by, an
// in-flight batch write.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new trace query service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Timeline returns one page of the session's records in ascending sequence
// order, starting strictly after cursor. Records appended between page
// fetches appear only in later pages, never retroactively in earlier ones.
func (s *Service) Timeline(ctx context.Context, sessionID string, cursor *int64, limit int) (*TimelinePage, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	if limit > maxTimelineLimit {
		limit = maxTimelineLimit
	}

	after := int64(0)
	if cursor != nil {
		after = *cursor
	}

	// Fetch one extra record to decide has_more without a second query.
	items, err := s.repo.Timeline(ctx, sessionID, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("loading timeline: %w", err)
	}

	page := &TimelinePage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
	}
	if len(page.Items) > 0 {
		last := page.Items[len(page.Items)-1].Sequence
		page.NextCursor = &last
	}
	return page, nil
}

// FindGaps scans the session's records in timestamp order and reports every
// consecutive pair separated by at least minimumGapSeconds. Timestamps are
// the producer's event-generation instants, not delivery times, so the
// result reflects developer silence rather than queue jitter.
func (s *Service) FindGaps(ctx context.Context, sessionID string, minimumGapSeconds float64) ([]GapResult, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session records: %w", err)
	}

	gaps := []GapResult{}
	for i := 1; i < len(records); i++ {
		delta := records[i].Timestamp.Sub(records[i-1].Timestamp).Seconds()
		if delta >= minimumGapSeconds {
			gaps = append(gaps, GapResult{
				StartEvent: records[i-1],
				EndEvent:   records[i],
				GapSeconds: delta,
			})
		}
	}
	return gaps, nil
}

// InspectPayload resolves each selector against the target record's fields.
// The reference is a per-session sequence when it parses as an integer,
// otherwise an event ID; sessionID disambiguates sequence lookups and may be
// empty. Unresolved selectors map to the not-found marker rather than
// failing the call.
func (s *Service) InspectPayload(ctx context.Context, sessionID, reference string, selectors []string) (*InspectionResult, error) {
	if reference == "" {
		return nil, ErrInvalidInput
	}

	rec, err := s.locate(ctx, sessionID, reference)
	if err != nil {
		return nil, err
	}

	tree := recordTree(rec)
	fields := make(map[string]any, len(selectors))
	for _, selector := range selectors {
		if value, ok := ResolveSelector(tree, selector); ok {
			fields[selector] = value
		} else {
			fields[selector] = NotFoundMarker
		}
	}

	return &InspectionResult{
		SessionID:       rec.SessionID,
		Sequence:        rec.Sequence,
		EventID:         rec.EventID,
		RequestedFields: fields,
	}, nil
}

// CompareGeneration returns the target record plus every other record in the
// same session whose timestamp lies within toleranceSeconds of the target's.
func (s *Service) CompareGeneration(ctx context.Context, eventID string, toleranceSeconds float64) (*ComparisonResult, error) {
	if eventID == "" {
		return nil, ErrInvalidInput
	}
	if toleranceSeconds < 0 {
		return nil, ErrInvalidInput
	}

	target, err := s.repo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("loading target record: %w", err)
	}

	tolerance := time.Duration(toleranceSeconds * float64(time.Second))
	neighbors, err := s.repo.Neighbors(ctx, target.SessionID, target.Timestamp, tolerance, target.EventID)
	if err != nil {
		return nil, fmt.Errorf("loading neighbors: %w", err)
	}

	typeCounts := make(map[string]int)
	for _, rec := range neighbors {
		typeCounts[string(rec.EventType)]++
	}

	return &ComparisonResult{
		TargetEvent:    *target,
		NeighborEvents: neighbors,
		Summary: ComparisonSummary{
			NeighborCount:    len(neighbors),
			ToleranceSeconds: toleranceSeconds,
			TypeCounts:       typeCounts,
		},
	}, nil
}

// ListSessions summarizes every session in the store.
func (s *Service) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := s.repo.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) locate(ctx context.Context, sessionID, reference string) (*Record, error) {
	if seq, err := strconv.ParseInt(reference, 10, 64); err == nil {
		rec, err := s.repo.GetBySequence(ctx, sessionID, seq)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("loading record by sequence: %w", err)
		}
		// A numeric event ID is unusual but legal; fall through.
	}

	rec, err := s.repo.GetByEventID(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("loading record by event id: %w", err)
	}
	return rec, nil
}
