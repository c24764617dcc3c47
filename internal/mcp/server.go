package mcp

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"judgment", "mapping", "act", "bookmark", "note", "chat"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"judgment_search": {
		def:     judgmentSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJudgmentSearch },
	},
	"judgment_fetch": {
		def:     judgmentFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJudgmentFetch },
	},
	"judgment_summarize": {
		def:     judgmentSummarizeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJudgmentSummarize },
	},
	"mapping_search": {
		def:     mappingSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMappingSearch },
	},
	"act_search": {
		def:     actSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleActSearch },
	},
	"bookmark_list": {
		def:     bookmarkListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkList },
	},
	"bookmark_add": {
		def:     bookmarkAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkAdd },
	},
	"note_store": {
		def:     noteStoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteStore },
	},
	"note_search": {
		def:     noteSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteSearch },
	},
	"chat_send": {
		def:     chatSendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChatSend },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "judgment_search" → "judgment").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Juris tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, client *api.Client, log zerolog.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"juris",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, client, log)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			log.Debug().Str("tool", name).Msg("tool disabled")
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(ctx context.Context, db *sql.DB, cfg *config.Config, client *api.Client, log zerolog.Logger, version string) error {
	s := NewServer(db, cfg, client, log, version)
	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
