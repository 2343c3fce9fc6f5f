package trace_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tracewell/tracewell/internal/domain/trace"
	"github.com/tracewell/tracewell/internal/repository"
	"github.com/tracewell/tracewell/internal/repository/mocks"
)

func serviceRecord(sessionID string, seq int64, ts time.Time) trace.Record {
	return trace.Record{
		Sequence:  seq,
		EventID:   "evt-" + sessionID + "-" + time.Duration(seq).String(),
		SessionID: sessionID,
		EventType: "trace_entry",
		Platform:  "claude_code",
		Timestamp: ts,
	}
}

func TestService_TimelinePaging(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	base := time.Now().UTC()
	full := []trace.Record{
		serviceRecord("sess-1", 1, base),
		serviceRecord("sess-1", 2, base.Add(time.Minute)),
		serviceRecord("sess-1", 3, base.Add(2*time.Minute)),
	}

	// First page: limit 2 fetches 3 to decide has_more.
	repo.On("Timeline", mock.Anything, "sess-1", int64(0), 3).Return(full, nil).Once()
	page, err := svc.Timeline(ctx, "sess-1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, int64(2), *page.NextCursor)

	// Second page resumes strictly after the cursor.
	repo.On("Timeline", mock.Anything, "sess-1", int64(2), 3).Return(full[2:], nil).Once()
	page, err = svc.Timeline(ctx, "sess-1", page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, int64(3), *page.NextCursor)
}

func TestService_TimelineEmptySession(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	repo.On("Timeline", mock.Anything, "sess-empty", int64(0), mock.Anything).Return([]trace.Record{}, nil)
	page, err := svc.Timeline(ctx, "sess-empty", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)
}

func TestService_TimelineClampsLimit(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	repo.On("Timeline", mock.Anything, "sess-1", int64(0), 501).Return([]trace.Record{}, nil)
	_, err := svc.Timeline(ctx, "sess-1", nil, 10000)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestService_TimelineRequiresSession(t *testing.T) {
	svc := trace.NewService(&mocks.TraceRepository{}, nil)
	_, err := svc.Timeline(context.Background(), "", nil, 10)
	assert.ErrorIs(t, err, trace.ErrInvalidInput)
}

func TestService_FindGaps(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []trace.Record{
		serviceRecord("sess-1", 1, base),
		serviceRecord("sess-1", 2, base.Add(5*time.Minute)),
		serviceRecord("sess-1", 3, base.Add(10*time.Minute)),
		serviceRecord("sess-1", 4, base.Add(15*time.Minute)),
		serviceRecord("sess-1", 5, base.Add(180*time.Minute)),
	}
	repo.On("ListBySession", mock.Anything, "sess-1").Return(records, nil)

	gaps, err := svc.FindGaps(ctx, "sess-1", 1800)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, int64(4), gaps[0].StartEvent.Sequence)
	assert.Equal(t, int64(5), gaps[0].EndEvent.Sequence)
	assert.InDelta(t, 9900, gaps[0].GapSeconds, 0.001)
}

func TestService_FindGapsThresholdInclusive(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	base := time.Now().UTC()
	records := []trace.Record{
		serviceRecord("sess-1", 1, base),
		serviceRecord("sess-1", 2, base.Add(60*time.Second)),
	}
	repo.On("ListBySession", mock.Anything, "sess-1").Return(records, nil)

	gaps, err := svc.FindGaps(ctx, "sess-1", 60)
	require.NoError(t, err)
	assert.Len(t, gaps, 1)
}

func TestService_FindGapsNoneFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	repo.On("ListBySession", mock.Anything, "sess-1").Return([]trace.Record{
		serviceRecord("sess-1", 1, time.Now().UTC()),
	}, nil)

	gaps, err := svc.FindGaps(ctx, "sess-1", 1)
	require.NoError(t, err)
	assert.NotNil(t, gaps)
	assert.Empty(t, gaps)
}

func TestService_InspectPayloadBySequence(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	rec := &trace.Record{
		Sequence:  3,
		EventID:   "evt-3",
		SessionID: "sess-1",
		EventType: "assistant_response",
		Payload: map[string]any{
			"entry_data": map[string]any{
				"message": map[string]any{"role": "assistant"},
			},
		},
	}
	repo.On("GetBySequence", mock.Anything, "sess-1", int64(3)).Return(rec, nil)

	result, err := svc.InspectPayload(ctx, "sess-1", "3", []string{
		"payload.entry_data.message.role",
		"payload.entry_data.missing",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, int64(3), result.Sequence)
	assert.Equal(t, "assistant", result.RequestedFields["payload.entry_data.message.role"])
	assert.Equal(t, trace.NotFoundMarker, result.RequestedFields["payload.entry_data.missing"])
}

func TestService_InspectPayloadByEventID(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	rec := &trace.Record{Sequence: 1, EventID: "evt-abc", SessionID: "sess-1"}
	repo.On("GetByEventID", mock.Anything, "evt-abc").Return(rec, nil)

	result, err := svc.InspectPayload(ctx, "", "evt-abc", []string{"event_id"})
	require.NoError(t, err)
	assert.Equal(t, "evt-abc", result.RequestedFields["event_id"])
	repo.AssertNotCalled(t, "GetBySequence", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_InspectPayloadNumericEventID(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	// A numeric reference that matches no sequence falls back to event ID.
	repo.On("GetBySequence", mock.Anything, "", int64(42)).Return(nil, repository.ErrNotFound)
	rec := &trace.Record{Sequence: 9, EventID: "42", SessionID: "sess-1"}
	repo.On("GetByEventID", mock.Anything, "42").Return(rec, nil)

	result, err := svc.InspectPayload(ctx, "", "42", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", result.EventID)
}

func TestService_InspectPayloadNotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	repo.On("GetByEventID", mock.Anything, "evt-missing").Return(nil, repository.ErrNotFound)

	_, err := svc.InspectPayload(ctx, "", "evt-missing", nil)
	assert.ErrorIs(t, err, trace.ErrRecordNotFound)
}

func TestService_CompareGeneration(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	base := time.Now().UTC()
	target := &trace.Record{Sequence: 5, EventID: "evt-5", SessionID: "sess-1", EventType: "assistant_response", Timestamp: base}
	neighbors := []trace.Record{
		{Sequence: 4, EventID: "evt-4", SessionID: "sess-1", EventType: "user_prompt", Timestamp: base.Add(-2 * time.Second)},
		{Sequence: 6, EventID: "evt-6", SessionID: "sess-1", EventType: "tool_execution", Timestamp: base.Add(time.Second)},
		{Sequence: 7, EventID: "evt-7", SessionID: "sess-1", EventType: "tool_execution", Timestamp: base.Add(3 * time.Second)},
	}
	repo.On("GetByEventID", mock.Anything, "evt-5").Return(target, nil)
	repo.On("Neighbors", mock.Anything, "sess-1", base, 5*time.Second, "evt-5").Return(neighbors, nil)

	result, err := svc.CompareGeneration(ctx, "evt-5", 5)
	require.NoError(t, err)
	assert.Equal(t, *target, result.TargetEvent)
	assert.Len(t, result.NeighborEvents, 3)
	assert.Equal(t, 3, result.Summary.NeighborCount)
	assert.Equal(t, float64(5), result.Summary.ToleranceSeconds)
	assert.Equal(t, map[string]int{"user_prompt": 1, "tool_execution": 2}, result.Summary.TypeCounts)
}

func TestService_CompareGenerationValidatesInput(t *testing.T) {
	svc := trace.NewService(&mocks.TraceRepository{}, nil)

	_, err := svc.CompareGeneration(context.Background(), "", 5)
	assert.ErrorIs(t, err, trace.ErrInvalidInput)

	_, err = svc.CompareGeneration(context.Background(), "evt-1", -1)
	assert.ErrorIs(t, err, trace.ErrInvalidInput)
}

func TestService_CompareGenerationNotFound(t *testing.T) {
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	repo.On("GetByEventID", mock.Anything, "evt-missing").Return(nil, repository.ErrNotFound)

	_, err := svc.CompareGeneration(context.Background(), "evt-missing", 5)
	assert.ErrorIs(t, err, trace.ErrRecordNotFound)
}

func TestService_ListSessions(t *testing.T) {
	repo := &mocks.TraceRepository{}
	svc := trace.NewService(repo, nil)

	summaries := []trace.SessionSummary{
		{SessionID: "sess-2", Platform: "cursor", RecordCount: 4},
		{SessionID: "sess-1", Platform: "claude_code", RecordCount: 2},
	}
	repo.On("Sessions", mock.Anything).Return(summaries, nil)

	got, err := svc.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summaries, got)
}
