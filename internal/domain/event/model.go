package event

import "time"

// Platform identifies the IDE integration that produced an event.
type Platform string

const (
	PlatformClaudeCode Platform = "claude_code"
	PlatformCursor     Platform = "cursor"
	PlatformUnknown    Platform = "unknown"
)

// KnownPlatforms lists every platform the pipeline provisions a stream for.
var KnownPlatforms = []Platform{PlatformClaudeCode, PlatformCursor}

// ParsePlatform maps a raw string to a Platform, falling back to
// PlatformUnknown so unrecognized producers fail closed.
func ParsePlatform(raw string) Platform {
	for _, p := range KnownPlatforms {
		if string(p) == raw {
			return p
		}
	}
	return PlatformUnknown
}

// Type classifies what kind of developer activity an event captures.
type Type string

const (
	TypeSessionStart   Type = "session_start"
	TypeSessionEnd     Type = "session_end"
	TypeUserPrompt     Type = "user_prompt"
	TypeAssistantReply Type = "assistant_response"
	TypeToolExecution  Type = "tool_execution"
	TypeMCPExecution   Type = "mcp_execution"
	TypeFileEdit       Type = "file_edit"
	TypeShellCommand   Type = "shell_command"
	TypeTraceEntry     Type = "trace_entry"
	TypeError          Type = "error"
)

// KnownTypes lists the closed set of event types the validator accepts.
var KnownTypes = []Type{
	TypeSessionStart,
	TypeSessionEnd,
	TypeUserPrompt,
	TypeAssistantReply,
	TypeToolExecution,
	TypeMCPExecution,
	TypeFileEdit,
	TypeShellCommand,
	TypeTraceEntry,
	TypeError,
}

// ParseType maps a raw string to a Type, falling back to TypeError so
// unrecognized kinds surface as error events instead of passing through.
func ParseType(raw string) Type {
	for _, t := range KnownTypes {
		if string(t) == raw {
			return t
		}
	}
	return TypeError
}

// HookType identifies which IDE hook emitted an event.
type HookType string

const (
	HookSessionStart     HookType = "SessionStart"
	HookSessionEnd       HookType = "SessionEnd"
	HookUserPromptSubmit HookType = "UserPromptSubmit"
	HookPreToolUse       HookType = "PreToolUse"
	HookPostToolUse      HookType = "PostToolUse"
	HookStop             HookType = "Stop"
	HookSubagentStop     HookType = "SubagentStop"
	HookNotification     HookType = "Notification"
	HookUnknown          HookType = "Unknown"
)

// Event is the canonical in-flight envelope produced by hook shims and
// carried through the durable stream. EventID is producer-assigned and is
// the idempotency key: the queue never reassigns it across redeliveries.
type Event struct {
	EventID    string         `json:"event_id"`
	Timestamp  string         `json:"timestamp"` // ISO-8601 UTC
	Platform   Platform       `json:"platform"`
	SessionID  string         `json:"session_id"`
	EventType  Type           `json:"event_type"`
	HookType   HookType       `json:"hook_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	RetryCount int            `json:"retry_count,omitempty"` // queue-assigned on redelivery
}

// Time parses the envelope timestamp. The validator guarantees this parses
// as a timezone-aware instant for any event that passed validation.
func (e Event) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}
