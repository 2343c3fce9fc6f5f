package trace

import (
	"strconv"
	"strings"
)

// ResolveSelector walks a dot-separated path (e.g.
// "payload.entry_data.message.role") into a decoded JSON tree. Path segments
// index into maps by key and into slices by non-negative integer. The second
// return is false when any segment fails to resolve; callers report the
// explicit not-found marker instead of an error.
func ResolveSelector(root any, selector string) (any, bool) {
	current := root
	for _, segment := range strings.Split(selector, ".") {
		if segment == "" {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			// Scalar or nil reached before the path ended.
			return nil, false
		}
	}
	return current, true
}

// recordTree exposes a record's addressable fields as the root of a selector
// walk. Top-level segments mirror the persisted column names.
func recordTree(rec *Record) map[string]any {
	return map[string]any{
		"sequence":   rec.Sequence,
		"event_id":   rec.EventID,
		"uuid":       rec.EventID,
		"session_id": rec.SessionID,
		"event_type": string(rec.EventType),
		"platform":   string(rec.Platform),
		"timestamp":  rec.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00"),
		"metadata":   anyMap(rec.Metadata),
		"payload":    anyMap(rec.Payload),
	}
}

func anyMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
