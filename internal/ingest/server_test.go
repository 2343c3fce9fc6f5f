package ingest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/ingest"
	"github.com/tracewell/tracewell/internal/queue"
)

// fakeEnqueuer records Enqueue calls and returns a scripted outcome.
type fakeEnqueuer struct {
	accept   bool
	events   []event.Event
	platform event.Platform
	session  string
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, ev event.Event, platform event.Platform, sessionID string) bool {
	f.events = append(f.events, ev)
	f.platform = platform
	f.session = sessionID
	return f.accept
}

func (f *fakeEnqueuer) Stats(ctx context.Context, platform event.Platform) (queue.Stats, error) {
	return queue.Stats{Depth: 7, Pending: 2}, nil
}

func postEvents(t *testing.T, srv *ingest.Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestServer_AcceptsEvent(t *testing.T) {
	enq := &fakeEnqueuer{accept: true}
	srv := ingest.NewServer(enq, nil)

	rec := postEvents(t, srv, `{
		"event": {"event_type": "user_prompt", "hook_type": "UserPromptSubmit", "payload": {"prompt": "hi"}},
		"platform": "claude_code",
		"session_id": "sess-1"
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.events, 1)
	assert.Equal(t, event.PlatformClaudeCode, enq.platform)
	assert.Equal(t, "sess-1", enq.session)
	assert.Equal(t, event.TypeUserPrompt, enq.events[0].EventType)
}

func TestServer_RejectsMalformedJSON(t *testing.T) {
	srv := ingest.NewServer(&fakeEnqueuer{accept: true}, nil)
	rec := postEvents(t, srv, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RejectsMissingFields(t *testing.T) {
	srv := ingest.NewServer(&fakeEnqueuer{accept: true}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"no event", `{"platform": "claude_code", "session_id": "sess-1"}`},
		{"no platform", `{"event": {}, "session_id": "sess-1"}`},
		{"no session", `{"event": {}, "platform": "claude_code"}`},
		{"unknown platform", `{"event": {}, "platform": "vim", "session_id": "sess-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postEvents(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServer_RejectsOversizedBody(t *testing.T) {
	srv := ingest.NewServer(&fakeEnqueuer{accept: true}, nil)

	big := bytes.Repeat([]byte("x"), ingest.MaxBodyBytes+1)
	body := `{"event": {"payload": {"blob": "` + string(big) + `"}}, "platform": "claude_code", "session_id": "sess-1"}`
	rec := postEvents(t, srv, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_QueueUnavailable(t *testing.T) {
	srv := ingest.NewServer(&fakeEnqueuer{accept: false}, nil)

	rec := postEvents(t, srv, `{"event": {}, "platform": "cursor", "session_id": "sess-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Health(t *testing.T) {
	srv := ingest.NewServer(&fakeEnqueuer{accept: true}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])

	streams, ok := resp["streams"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, streams, "claude_code")
	assert.Contains(t, streams, "cursor")
}
