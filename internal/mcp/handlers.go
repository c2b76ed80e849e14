package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"daybook/internal/archive"
	"daybook/internal/engine"
	"daybook/internal/errors"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	eng   *engine.Engine
	store *archive.Store
	loc   *time.Location
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *engine.Engine, store *archive.Store, loc *time.Location) *Handlers {
	return &Handlers{eng: eng, store: store, loc: loc}
}

// RunRequest represents the arguments for archive_run.
type RunRequest struct {
	User string `json:"user"`
	Day  string `json:"day"` // YYYY-MM-DD
}

// DayRequest represents the arguments for archive_day.
type DayRequest struct {
	User string `json:"user"`
	Day  string `json:"day"`
}

// ConflictsRequest represents the arguments for archive_conflicts.
type ConflictsRequest struct {
	User string `json:"user"`
	Day  string `json:"day,omitempty"`
}

// RunsRequest represents the arguments for archive_runs.
type RunsRequest struct {
	User  string `json:"user"`
	Day   string `json:"day,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// HandleRun triggers one archiving run for a (user, day).
// It is the same entry point the CLI and the scheduler use.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	day, derr := parseDay(input.Day, h.loc)
	if derr != nil {
		return errorResult(derr), nil
	}
	if input.User == "" {
		return errorResult(errors.NewInvalidRequest("user is required")), nil
	}

	summary, err := h.eng.Run(ctx, input.User, day)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(summary)
}

// HandleDay returns the archived records of one (user, day).
func (h *Handlers) HandleDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.User == "" {
		return errorResult(errors.NewInvalidRequest("user is required")), nil
	}
	if _, derr := parseDay(input.Day, h.loc); derr != nil {
		return errorResult(derr), nil
	}

	records, err := h.store.GetDay(ctx, input.User, input.Day)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"user":    input.User,
		"day":     input.Day,
		"records": records,
	})
}

// HandleConflicts lists conflict-pending records for a user.
func (h *Handlers) HandleConflicts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConflictsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.User == "" {
		return errorResult(errors.NewInvalidRequest("user is required")), nil
	}

	var day *string
	if input.Day != "" {
		if _, derr := parseDay(input.Day, h.loc); derr != nil {
			return errorResult(derr), nil
		}
		day = &input.Day
	}

	records, err := h.store.ListConflicts(ctx, input.User, day)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"user":      input.User,
		"conflicts": records,
	})
}

// HandleRuns lists run summaries for a user, newest first.
func (h *Handlers) HandleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.User == "" {
		return errorResult(errors.NewInvalidRequest("user is required")), nil
	}

	var day *string
	if input.Day != "" {
		if _, derr := parseDay(input.Day, h.loc); derr != nil {
			return errorResult(derr), nil
		}
		day = &input.Day
	}

	runs, err := h.store.ListRuns(ctx, input.User, day, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"user": input.User,
		"runs": runs,
	})
}

// parseDay validates a YYYY-MM-DD day string in the configured timezone.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.NewInvalidRequest("day is required (YYYY-MM-DD)")
	}
	day, err := time.ParseInLocation(engine.DayFormat, s, loc)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest("day must be formatted YYYY-MM-DD")
	}
	return day, nil
}

// errorResult creates an MCP error result carrying the structured error code.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if dErr, ok := err.(*errors.Error); ok {
		errorObj := map[string]any{
			"code":      dErr.Code,
			"message":   dErr.Message,
			"retryable": dErr.Retryable,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
