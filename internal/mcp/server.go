package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tracewell/tracewell/internal/domain/trace"
	"github.com/tracewell/tracewell/internal/queue"
)

const serverInstructions = `Tracewell exposes the persisted developer-activity trace log.
Start with list_sessions to discover session IDs, then page through a session
with get_timeline (feed next_cursor back until has_more is false). Use
find_gaps to locate silence windows, inspect_payload to pull nested payload
fields out of a single record, and compare_generation to see everything that
happened around a given event.`

// Config contains server configuration.
type Config struct {
	Traces      *trace.Service
	DeadLetters queue.DeadLetterRepository
	Logger      *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "tracewell",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg)

	return server
}
