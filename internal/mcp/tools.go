package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Shared descriptions
const (
	limitDesc  = "Page size (default from config, max 100)"
	cursorDesc = "Opaque next_cursor from a previous call. Omit for the first page"
	searchDesc = "Free-text search"
)

var judgmentSearchToolDef = mcp.NewTool("judgment_search",
	mcp.WithDescription("Search court judgments. Results are newest first and cursor-paginated: pass next_cursor back to continue while has_more is true. An empty page with has_more=true is not the end."),
	mcp.WithString("search", mcp.Description(searchDesc)),
	mcp.WithString("court_name", mcp.Description("Court name, e.g. \"Delhi High Court\"")),
	mcp.WithString("year", mcp.Description("Decision year, e.g. \"2024\"")),
	mcp.WithString("judge", mcp.Description("Judge name")),
	mcp.WithString("cnr", mcp.Description("Case Number Record")),
	mcp.WithString("from_date", mcp.Description("Earliest decision date (YYYY-MM-DD)")),
	mcp.WithString("to_date", mcp.Description("Latest decision date (YYYY-MM-DD)")),
	mcp.WithNumber("limit", mcp.Description(limitDesc)),
	mcp.WithString("cursor", mcp.Description(cursorDesc)),
)

var judgmentFetchToolDef = mcp.NewTool("judgment_fetch",
	mcp.WithDescription("Fetch one judgment with its full metadata and summary."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Judgment ID")),
)

var judgmentSummarizeToolDef = mcp.NewTool("judgment_summarize",
	mcp.WithDescription("Ask the backend AI to summarize a judgment."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Judgment ID")),
)

var mappingSearchToolDef = mcp.NewTool("mapping_search",
	mcp.WithDescription("Search law mappings between old and new codes (IPC→BNS, CrPC→BNSS, IEA→BSA). Cursor-paginated like judgment_search."),
	mcp.WithString("search", mcp.Description(searchDesc)),
	mcp.WithString("mapping_type", mcp.Description("Mapping type, e.g. \"ipc_bns\"")),
	mcp.WithString("source_section", mcp.Description("Section of the old code, e.g. \"302\"")),
	mcp.WithNumber("limit", mcp.Description(limitDesc)),
	mcp.WithString("cursor", mcp.Description(cursorDesc)),
)

var actSearchToolDef = mcp.NewTool("act_search",
	mcp.WithDescription("Search central and state acts. Cursor-paginated like judgment_search."),
	mcp.WithString("search", mcp.Description(searchDesc)),
	mcp.WithString("year", mcp.Description("Year of enactment")),
	mcp.WithString("act_type", mcp.Description("\"central\" or \"state\"")),
	mcp.WithString("state", mcp.Description("State name for state acts")),
	mcp.WithNumber("limit", mcp.Description(limitDesc)),
	mcp.WithString("cursor", mcp.Description(cursorDesc)),
)

var bookmarkListToolDef = mcp.NewTool("bookmark_list",
	mcp.WithDescription("List saved bookmarks, newest first. Offset-paginated; pass next_cursor back to continue."),
	mcp.WithString("folder", mcp.Description("Only bookmarks in this folder")),
	mcp.WithString("item_type", mcp.Description("Only bookmarks of this item type")),
	mcp.WithNumber("limit", mcp.Description(limitDesc)),
	mcp.WithString("cursor", mcp.Description(cursorDesc)),
)

var bookmarkAddToolDef = mcp.NewTool("bookmark_add",
	mcp.WithDescription("Bookmark a judgment, act or mapping."),
	mcp.WithString("item_type", mcp.Required(), mcp.Enum("judgment", "act", "mapping"), mcp.Description("Kind of item")),
	mcp.WithString("item_id", mcp.Required(), mcp.Description("ID of the item")),
	mcp.WithString("title", mcp.Description("Display title")),
	mcp.WithString("folder", mcp.Description("Folder to file it under")),
	mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
	mcp.WithString("note", mcp.Description("Free-form note")),
)

var noteStoreToolDef = mcp.NewTool("note_store",
	mcp.WithDescription("Save a local markdown research note. Titles are unique ignoring case and spacing; mode=replace overwrites an existing note with the same title."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
	mcp.WithString("body", mcp.Required(), mcp.Description("Markdown body")),
	mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
	mcp.WithString("item_kind", mcp.Description("Kind of item the note is about (judgment, act, mapping)")),
	mcp.WithString("item_id", mcp.Description("ID of the item the note is about")),
	mcp.WithString("mode", mcp.Enum("error", "replace"), mcp.Description("Behavior on title collision (default: error)")),
)

var noteSearchToolDef = mcp.NewTool("note_search",
	mcp.WithDescription("Search local notes by title and body. Snippets mark matches with <b> tags."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Text to find")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Results to skip")),
)

var chatSendToolDef = mcp.NewTool("chat_send",
	mcp.WithDescription("Ask the legal research assistant a question. Replies are markdown."),
	mcp.WithString("message", mcp.Required(), mcp.Description("Question for the assistant")),
)
