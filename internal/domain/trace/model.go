package trace

import (
	"time"

	"github.com/tracewell/tracewell/internal/domain/event"
)

// Record is a persisted trace entry. Records are append-only: once written
// they are never mutated. Sequence is assigned by the store at write time,
// strictly increasing per session, and is unrelated to any queue delivery ID.
type Record struct {
	Sequence  int64          `json:"sequence"`
	EventID   string         `json:"event_id"`
	SessionID string         `json:"session_id"`
	EventType event.Type     `json:"event_type"`
	Platform  event.Platform `json:"platform"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// FromEvent builds the persisted record for a validated envelope. The
// timestamp must already have passed validation; a zero time is stored if it
// does not parse.
func FromEvent(ev event.Event) *Record {
	ts, _ := ev.Time()
	return &Record{
		EventID:   ev.EventID,
		SessionID: ev.SessionID,
		EventType: ev.EventType,
		Platform:  ev.Platform,
		Timestamp: ts,
		Metadata:  ev.Metadata,
		Payload:   ev.Payload,
	}
}

// SessionSummary describes one session present in the store.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	Platform    string    `json:"platform"`
	RecordCount int64     `json:"record_count"`
	FirstEvent  time.Time `json:"first_event"`
	LastEvent   time.Time `json:"last_event"`
}

// TimelinePage is one window of a session's timeline. NextCursor is the
// sequence of the last returned record; feeding it back visits every record
// exactly once even while writers append new sequences.
type TimelinePage struct {
	Items      []Record `json:"items"`
	HasMore    bool     `json:"has_more"`
	NextCursor *int64   `json:"next_cursor,omitempty"`
}

// GapResult is a detected silence window between two records consecutive by
// timestamp within a session.
type GapResult struct {
	StartEvent Record  `json:"start_event"`
	EndEvent   Record  `json:"end_event"`
	GapSeconds float64 `json:"gap_seconds"`
}

// ComparisonSummary aggregates a generation comparison.
type ComparisonSummary struct {
	NeighborCount    int            `json:"neighbor_count"`
	ToleranceSeconds float64        `json:"tolerance_seconds"`
	TypeCounts       map[string]int `json:"type_counts,omitempty"`
}

// ComparisonResult is a target record plus every other record in its session
// within the tolerance window of its timestamp.
type ComparisonResult struct {
	TargetEvent    Record            `json:"target_event"`
	NeighborEvents []Record          `json:"neighbor_events"`
	Summary        ComparisonSummary `json:"summary"`
}

// NotFoundMarker is the value reported for selectors that do not resolve.
const NotFoundMarker = "<not found>"

// InspectionResult maps each requested selector to its resolved value, or to
// NotFoundMarker when the path does not resolve. One call can probe many
// speculative selectors without per-field error handling.
type InspectionResult struct {
	SessionID       string         `json:"session_id"`
	Sequence        int64          `json:"sequence"`
	EventID         string         `json:"event_id"`
	RequestedFields map[string]any `json:"requested_fields"`
}
