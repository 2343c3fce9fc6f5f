package queue

import (
	"time"

	"github.com/tracewell/tracewell/internal/domain/event"
)

// StreamForPlatform maps a platform to its provisioned stream name. One
// stream per platform family, each with a single consumer group shared by
// all workers of that platform.
func StreamForPlatform(platform event.Platform) string {
	return "events:" + string(platform)
}

// GroupForPlatform names the consumer group for a platform's stream.
func GroupForPlatform(platform event.Platform) string {
	return "trace-writers:" + string(platform)
}

// Delivery pairs a stream entry with its queue-assigned delivery identifier.
// The delivery ID names a position in the stream, not a logical event: it is
// distinct from the producer-assigned event ID, which stays stable across
// redeliveries. RetryCount on the embedded event reflects how many times
// this entry has been handed to a consumer.
type Delivery struct {
	ID    int64
	Event event.Event
}

// DeadLetter is a terminal record of an entry that repeatedly failed
// validation or processing. Removed from the live stream, retained for
// diagnostics, never re-enqueued.
type DeadLetter struct {
	ID       int64     `json:"id"`
	Stream   string    `json:"stream"`
	Group    string    `json:"group"`
	EventID  string    `json:"event_id"`
	Body     string    `json:"body"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
