package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tracewell/tracewell/internal/queue"
)

func TestDeadLetterRepository_AddList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewDeadLetterRepository(db)

	letters, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, letters)

	require.NoError(t, repo.Add(ctx, &queue.DeadLetter{
		Stream:  "events:claude_code",
		Group:   "trace-writers:claude_code",
		EventID: "evt-1",
		Body:    `{"event_id":"evt-1"}`,
		Reason:  "invalid event: timestamp is required",
	}))
	require.NoError(t, repo.Add(ctx, &queue.DeadLetter{
		Stream:  "events:claude_code",
		Group:   "trace-writers:claude_code",
		EventID: "evt-2",
		Body:    `{"event_id":"evt-2"}`,
		Reason:  "invalid event: platform is required",
	}))

	letters, err = repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	// Newest first.
	require.Equal(t, "evt-2", letters[0].EventID)
	require.False(t, letters[0].FailedAt.IsZero())

	letters, err = repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, letters, 1)
}
