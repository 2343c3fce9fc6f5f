package event

import (
	"fmt"
	"time"
)

// ValidationError reports why an event failed structural validation. It is
// returned as a typed result so callers can route the event to a dead-letter
// path instead of crashing the consumer loop.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// Validate checks the structural invariants of an envelope: all required
// fields present, platform and event type members of their closed sets, and
// a parseable timezone-aware timestamp. Pure function, no side effects.
func Validate(ev Event) error {
	if ev.EventID == "" {
		return &ValidationError{Field: "event_id", Reason: "is required"}
	}
	if ev.SessionID == "" {
		return &ValidationError{Field: "session_id", Reason: "is required"}
	}
	if ev.HookType == "" {
		return &ValidationError{Field: "hook_type", Reason: "is required"}
	}
	if ev.Timestamp == "" {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if _, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err != nil {
		return &ValidationError{Field: "timestamp", Reason: "is not an ISO-8601 instant"}
	}
	if ev.Platform == "" {
		return &ValidationError{Field: "platform", Reason: "is required"}
	}
	if ParsePlatform(string(ev.Platform)) == PlatformUnknown {
		return &ValidationError{Field: "platform", Reason: fmt.Sprintf("%q is not a known platform", ev.Platform)}
	}
	if ev.EventType == "" {
		return &ValidationError{Field: "event_type", Reason: "is required"}
	}
	if !isKnownType(ev.EventType) {
		return &ValidationError{Field: "event_type", Reason: fmt.Sprintf("%q is not a known event type", ev.EventType)}
	}
	return nil
}

func isKnownType(t Type) bool {
	for _, known := range KnownTypes {
		if t == known {
			return true
		}
	}
	return false
}
