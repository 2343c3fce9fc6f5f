package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tracewell/tracewell/internal/domain/trace"
)

type getTimelineInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to browse"`
	Cursor    *int64 `json:"cursor,omitempty" jsonschema:"Resume after this sequence (next_cursor from the previous page)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum records per page"`
}

type findGapsInput struct {
	SessionID         string  `json:"session_id" jsonschema:"Session to scan"`
	MinimumGapSeconds float64 `json:"minimum_gap_seconds" jsonschema:"Report silences of at least this many seconds"`
}

type inspectPayloadInput struct {
	Reference string   `json:"reference" jsonschema:"Record sequence number or event UUID"`
	SessionID string   `json:"session_id,omitempty" jsonschema:"Disambiguates sequence lookups; optional"`
	Selectors []string `json:"selectors" jsonschema:"Dot-separated field paths, e.g. payload.entry_data.message.role"`
}

type compareGenerationInput struct {
	UUID             string  `json:"uuid" jsonschema:"Event UUID of the target record"`
	ToleranceSeconds float64 `json:"tolerance_seconds" jsonschema:"Half-width of the comparison window in seconds"`
}

type listSessionsInput struct{}

type getDeadLettersInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum entries to return"`
}

// registerTools wires the trace query operations onto the MCP server.
func registerTools(server *sdkmcp.Server, cfg Config) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_timeline",
		Description: "Page through a session's trace records in sequence order. Feed next_cursor back until has_more is false.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, input getTimelineInput) (*sdkmcp.CallToolResult, any, error) {
		page, err := cfg.Traces.Timeline(ctx, input.SessionID, input.Cursor, input.Limit)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(page)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "find_gaps",
		Description: "Detect silence windows between consecutive records in a session.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, input findGapsInput) (*sdkmcp.CallToolResult, any, error) {
		gaps, err := cfg.Traces.FindGaps(ctx, input.SessionID, input.MinimumGapSeconds)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"gaps": gaps, "gap_count": len(gaps)})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "inspect_payload",
		Description: "Resolve dot-path selectors against one record's structured fields. Unresolved paths report a not-found marker instead of failing.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, input inspectPayloadInput) (*sdkmcp.CallToolResult, any, error) {
		result, err := cfg.Traces.InspectPayload(ctx, input.SessionID, input.Reference, input.Selectors)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(result)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "compare_generation",
		Description: "Return a target record plus every other record in its session within a time tolerance of it.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, input compareGenerationInput) (*sdkmcp.CallToolResult, any, error) {
		result, err := cfg.Traces.CompareGeneration(ctx, input.UUID, input.ToleranceSeconds)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(result)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_sessions",
		Description: "List every session in the trace store with record counts and first/last event times.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, input listSessionsInput) (*sdkmcp.CallToolResult, any, error) {
		sessions, err := cfg.Traces.ListSessions(ctx)
		if err != nil {
			return errorResult(err)
		}
		if sessions == nil {
			sessions = []trace.SessionSummary{}
		}
		return jsonResult(map[string]any{"sessions": sessions})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_dead_letters",
		Description: "Inspect events that were dead-lettered after repeated validation failures.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, input getDeadLettersInput) (*sdkmcp.CallToolResult, any, error) {
		letters, err := cfg.DeadLetters.List(ctx, input.Limit)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"dead_letters": letters, "count": len(letters)})
	})
}

// jsonResult renders a payload as the tool's text content.
func jsonResult(payload any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// errorResult renders a domain error as a tool-level error so callers see a
// typed result instead of a protocol failure.
func errorResult(err error) (*sdkmcp.CallToolResult, any, error) {
	apiErr := MapError(err)
	if apiErr == nil {
		return nil, nil, err
	}
	data, merr := json.Marshal(apiErr)
	if merr != nil {
		return nil, nil, err
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
