package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSelector(t *testing.T) {
	tree := map[string]any{
		"payload": map[string]any{
			"entry_data": map[string]any{
				"message": map[string]any{
					"role":    "assistant",
					"content": []any{map[string]any{"type": "text", "text": "hi"}},
				},
			},
			"count": float64(3),
		},
	}

	tests := []struct {
		name     string
		selector string
		want     any
		found    bool
	}{
		{"nested map path", "payload.entry_data.message.role", "assistant", true},
		{"array index", "payload.entry_data.message.content.0.text", "hi", true},
		{"scalar leaf", "payload.count", float64(3), true},
		{"whole subtree", "payload.entry_data.message", tree["payload"].(map[string]any)["entry_data"].(map[string]any)["message"], true},
		{"missing key", "payload.entry_data.missing", nil, false},
		{"index out of range", "payload.entry_data.message.content.5", nil, false},
		{"non-numeric index", "payload.entry_data.message.content.first", nil, false},
		{"descend into scalar", "payload.count.deeper", nil, false},
		{"empty segment", "payload..count", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ResolveSelector(tree, tt.selector)
			require.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordTree(t *testing.T) {
	rec := &Record{
		Sequence:  7,
		EventID:   "evt-1",
		SessionID: "sess-1",
		EventType: "user_prompt",
		Platform:  "claude_code",
		Payload:   map[string]any{"prompt": "fix the bug"},
	}

	tree := recordTree(rec)

	got, found := ResolveSelector(tree, "payload.prompt")
	require.True(t, found)
	assert.Equal(t, "fix the bug", got)

	// uuid aliases event_id for callers that address records by uuid.
	got, found = ResolveSelector(tree, "uuid")
	require.True(t, found)
	assert.Equal(t, "evt-1", got)

	// Nil maps resolve as empty objects, not as missing paths.
	got, found = ResolveSelector(tree, "metadata")
	require.True(t, found)
	assert.Equal(t, map[string]any{}, got)
}
