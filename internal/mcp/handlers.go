package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/chat"
	"github.com/hpungsan/juris/internal/config"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/filter"
	"github.com/hpungsan/juris/internal/item"
	"github.com/hpungsan/juris/internal/ops"
	"github.com/hpungsan/juris/internal/paginate"
)

// ChatSessionID is the persisted transcript chat_send appends to.
const ChatSessionID = "mcp"

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	client *api.Client
	log    zerolog.Logger

	chatOnce sync.Once
	chat     *chat.Session
	chatErr  error
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, client *api.Client, log zerolog.Logger) *Handlers {
	return &Handlers{db: db, cfg: cfg, client: client, log: log}
}

// Request types for each tool

// IDRequest represents the arguments for judgment_fetch and judgment_summarize.
type IDRequest struct {
	ID item.ID `json:"id"`
}

// BookmarkAddRequest represents the arguments for bookmark_add.
type BookmarkAddRequest struct {
	ItemType string   `json:"item_type"`
	ItemID   item.ID  `json:"item_id"`
	Title    string   `json:"title,omitempty"`
	Folder   string   `json:"folder,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// NoteStoreRequest represents the arguments for note_store.
type NoteStoreRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags,omitempty"`
	ItemKind string   `json:"item_kind,omitempty"`
	ItemID   item.ID  `json:"item_id,omitempty"`
	Mode     string   `json:"mode,omitempty"`
}

// NoteSearchRequest represents the arguments for note_search.
type NoteSearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ChatSendRequest represents the arguments for chat_send.
type ChatSendRequest struct {
	Message string `json:"message"`
}

// PageOutput is one page of a paginated remote list.
type PageOutput[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// Handler implementations

// HandleJudgmentSearch handles the judgment_search tool call.
func (h *Handlers) HandleJudgmentSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return searchPage(ctx, h, req, filter.JudgmentSchema, h.client.ListJudgments)
}

// HandleMappingSearch handles the mapping_search tool call.
func (h *Handlers) HandleMappingSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return searchPage(ctx, h, req, filter.MappingSchema, h.client.ListMappings)
}

// HandleActSearch handles the act_search tool call.
func (h *Handlers) HandleActSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return searchPage(ctx, h, req, filter.ActSchema, h.client.ListActs)
}

// HandleBookmarkList handles the bookmark_list tool call.
func (h *Handlers) HandleBookmarkList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return searchPage(ctx, h, req, filter.BookmarkSchema, h.client.ListBookmarks)
}

// searchPage fetches the single page addressed by the request's filters,
// limit and cursor.
func searchPage[T any](ctx context.Context, h *Handlers, req mcp.CallToolRequest, schema filter.Schema, fetch paginate.Fetcher[T]) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	filters, err := filtersFromArgs(args, schema)
	if err != nil {
		return errorResult(err), nil
	}
	cursor, err := parseCursor(args["cursor"])
	if err != nil {
		return errorResult(err), nil
	}
	limit := h.cfg.PageLimit
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = min(int(n), ops.MaxListLimit)
	}

	page, err := fetch(ctx, paginate.Query{Filters: filters, Cursor: cursor, Limit: limit})
	if err != nil {
		return errorResult(err), nil
	}

	out := PageOutput[T]{Items: page.Items, HasMore: page.HasMore}
	if out.Items == nil {
		out.Items = []T{}
	}
	if page.HasMore && page.Next != nil {
		out.NextCursor = page.Next.String()
	}
	return successResult(out)
}

// filtersFromArgs reads the schema's fields from tool arguments. Numbers
// are accepted for fields like year.
func filtersFromArgs(args map[string]any, schema filter.Schema) (filter.State, error) {
	st := schema.Defaults()
	for _, f := range schema {
		switch v := args[f.Name].(type) {
		case nil:
		case string:
			st[f.Name] = strings.TrimSpace(v)
		case float64:
			st[f.Name] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s must be a string", f.Name))
		}
	}
	return st, nil
}

// parseCursor decodes a next_cursor string returned by an earlier call.
func parseCursor(v any) (*paginate.Cursor, error) {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	params, err := url.ParseQuery(s)
	if err != nil {
		return nil, errors.NewInvalidRequest("cursor is not valid")
	}
	c := paginate.CursorFromParams(params)
	if c == nil {
		return nil, errors.NewInvalidRequest("cursor is not valid")
	}
	return c, nil
}

// HandleJudgmentFetch handles the judgment_fetch tool call.
func (h *Handlers) HandleJudgmentFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.ID.String()) == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := h.client.GetJudgment(ctx, input.ID.String())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleJudgmentSummarize handles the judgment_summarize tool call.
func (h *Handlers) HandleJudgmentSummarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.ID.String()) == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	summary, err := h.client.SummarizeJudgment(ctx, input.ID.String())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"id": input.ID.String(), "summary": summary})
}

// HandleBookmarkAdd handles the bookmark_add tool call.
func (h *Handlers) HandleBookmarkAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BookmarkAddRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.client.AddBookmark(ctx, api.BookmarkInput{
		ItemType: input.ItemType,
		ItemID:   input.ItemID.String(),
		Title:    input.Title,
		Folder:   input.Folder,
		Tags:     input.Tags,
		Note:     input.Note,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteStore handles the note_store tool call.
func (h *Handlers) HandleNoteStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteStoreRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.StoreNote(ctx, h.db, h.cfg, ops.StoreNoteInput{
		Title:    input.Title,
		Body:     input.Body,
		Tags:     input.Tags,
		ItemKind: input.ItemKind,
		ItemID:   input.ItemID.String(),
		Mode:     ops.StoreMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNoteSearch handles the note_search tool call.
func (h *Handlers) HandleNoteSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteSearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SearchNotes(ctx, h.db, ops.SearchNotesInput{
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleChatSend handles the chat_send tool call.
func (h *Handlers) HandleChatSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChatSendRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	session, err := h.chatSession(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	reply, err := session.Send(ctx, input.Message)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"reply":     reply.Text,
		"tool_used": reply.ToolUsed,
	})
}

// chatSession resumes the persisted MCP transcript on first use.
func (h *Handlers) chatSession(ctx context.Context) (*chat.Session, error) {
	h.chatOnce.Do(func() {
		h.chat, h.chatErr = chat.Resume(ctx, h.client, chat.Options{
			ID:            ChatSessionID,
			Store:         ops.NewChatStore(h.db),
			Logger:        h.log,
			VoiceMaxBytes: h.cfg.VoiceMaxBytes,
		})
	})
	return h.chat, h.chatErr
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var jErr *errors.JurisError
	if stderrors.As(err, &jErr) {
		errorObj := map[string]any{
			"code":    jErr.Code,
			"message": jErr.Message,
			"status":  jErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if jErr.Code != errors.ErrInternal && jErr.Details != nil {
			errorObj["details"] = jErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
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

