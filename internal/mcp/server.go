package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"daybook/internal/archive"
	"daybook/internal/engine"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"archive_run": {
		def:     runToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRun },
	},
	"archive_day": {
		def:     dayToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDay },
	},
	"archive_conflicts": {
		def:     conflictsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConflicts },
	},
	"archive_runs": {
		def:     runsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuns },
	},
}

var runToolDef = mcp.NewTool("archive_run",
	mcp.WithDescription("Fetch, reconcile, and archive one user's calendar for one day. Re-running for the same day replaces the day's records."),
	mcp.WithString("user", mcp.Required(), mcp.Description("User ID to archive")),
	mcp.WithString("day", mcp.Required(), mcp.Description("Day to archive, formatted YYYY-MM-DD")),
)

var dayToolDef = mcp.NewTool("archive_day",
	mcp.WithDescription("Read the archived records of one user's day, ordered by start time."),
	mcp.WithString("user", mcp.Required(), mcp.Description("User ID")),
	mcp.WithString("day", mcp.Required(), mcp.Description("Day to read, formatted YYYY-MM-DD")),
)

var conflictsToolDef = mcp.NewTool("archive_conflicts",
	mcp.WithDescription("List conflict-pending records awaiting manual resolution, optionally scoped to one day."),
	mcp.WithString("user", mcp.Required(), mcp.Description("User ID")),
	mcp.WithString("day", mcp.Description("Optional day filter, formatted YYYY-MM-DD")),
)

var runsToolDef = mcp.NewTool("archive_runs",
	mcp.WithDescription("List archiving run summaries for a user, newest first."),
	mcp.WithString("user", mcp.Required(), mcp.Description("User ID")),
	mcp.WithString("day", mcp.Description("Optional day filter, formatted YYYY-MM-DD")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return")),
)

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates a new MCP server with daybook tools registered.
func NewServer(eng *engine.Engine, store *archive.Store, loc *time.Location, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"daybook",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(eng, store, loc)

	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(eng *engine.Engine, store *archive.Store, loc *time.Location, version string) error {
	s := NewServer(eng, store, loc, version)
	return server.ServeStdio(s)
}
