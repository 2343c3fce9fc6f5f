package mcp

import (
	"errors"
	"fmt"

	"github.com/tracewell/tracewell/internal/domain/trace"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Returns nil for errors
// with no mapping; callers pass those through unchanged.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, trace.ErrRecordNotFound):
		return &APIError{Code: "RECORD_NOT_FOUND", Message: "trace record not found", RecoveryHint: "Check the event ID or sequence; list_sessions shows what exists"}
	case errors.Is(err, trace.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: "invalid query argument", RecoveryHint: "Check required arguments and value ranges"}
	default:
		return nil
	}
}
