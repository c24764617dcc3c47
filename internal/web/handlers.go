package web

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"strconv"
	"strings"

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

// dashboardLimit is how many events, notes and downloads the dashboard shows.
const dashboardLimit = 5

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db           *sql.DB
	cfg          *config.Config
	client       *api.Client
	chat         *chat.Session
	downloadsDir string
	renderer     *Renderer
	log          zerolog.Logger
}

// rowFetcher fetches one page of a resource as display rows.
type rowFetcher func(ctx context.Context, q paginate.Query) (*paginate.Page[item.Row], error)

// rowsOf adapts a typed fetcher to rows.
func rowsOf[T item.Item](fetch paginate.Fetcher[T]) rowFetcher {
	return func(ctx context.Context, q paginate.Query) (*paginate.Page[item.Row], error) {
		page, err := fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		return &paginate.Page[item.Row]{Items: item.Rows(page.Items), Next: page.Next, HasMore: page.HasMore}, nil
	}
}

// listResource is one infinitely scrolled list: a full page at path and
// row fragments at path/page.
type listResource struct {
	title   string
	nav     string
	path    string
	schema  filter.Schema
	deletes bool
	fetch   rowFetcher
}

func (h *Handlers) listResources() []listResource {
	return []listResource{
		{title: "Judgments", nav: "judgments", path: "/judgments", schema: filter.JudgmentSchema, fetch: rowsOf(h.client.ListJudgments)},
		{title: "Law Mappings", nav: "mappings", path: "/mappings", schema: filter.MappingSchema, fetch: rowsOf(h.client.ListMappings)},
		{title: "Acts", nav: "acts", path: "/acts", schema: filter.ActSchema, fetch: rowsOf(h.client.ListActs)},
		{title: "Bookmarks", nav: "bookmarks", path: "/bookmarks", schema: filter.BookmarkSchema, deletes: true, fetch: rowsOf(h.client.ListBookmarks)},
	}
}

// listPage handles GET {path}: the filter form and the first page of rows.
func (h *Handlers) listPage(res listResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters := parseFilters(r.URL.Query(), res.schema)

		fields := make([]FilterField, len(res.schema))
		for i, f := range res.schema {
			fields[i] = FilterField{Field: f, Value: filters.Get(f.Name)}
		}

		h.renderer.renderPage(w, r, "list", ListPageData{
			PageData: h.renderer.page(res.title, res.nav),
			Action:   res.path,
			Filters:  fields,
			RowsData: h.fetchRows(r.Context(), res, filters, nil),
		})
	}
}

// listRows handles GET {path}/page: one page of rows for the scroll sentinel.
func (h *Handlers) listRows(res listResource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		data := h.fetchRows(r.Context(), res, parseFilters(params, res.schema), paginate.CursorFromParams(params))
		h.renderer.renderBlock(w, http.StatusOK, "list", "rows", data)
	}
}

// fetchRows loads one page. Failures become an inline banner whose retry
// re-requests the same page; the rows already shown are untouched.
func (h *Handlers) fetchRows(ctx context.Context, res listResource, filters filter.State, cursor *paginate.Cursor) RowsData {
	q := paginate.Query{Filters: filters, Cursor: cursor, Limit: h.cfg.PageLimit}
	data := RowsData{First: cursor == nil, Deletes: res.deletes}

	page, err := h.fetchPage(ctx, res, q)
	if err != nil {
		h.log.Warn().Err(err).Str("list", res.path).Msg("page fetch failed")
		data.Error = errors.UserMessage(err)
		data.Retry = pageURL(res.path, paginate.Query{Filters: filters, Cursor: cursor})
		return data
	}

	data.Rows = page.Items
	if page.HasMore && page.Next != nil {
		data.Next = pageURL(res.path, paginate.Query{Filters: filters, Cursor: page.Next})
	}
	return data
}

func (h *Handlers) fetchPage(ctx context.Context, res listResource, q paginate.Query) (*paginate.Page[item.Row], error) {
	page, err := res.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.NewMalformedResponse(res.path, "empty page")
	}
	return page, nil
}

// pageURL encodes filters and cursor into a row-fragment URL.
func pageURL(path string, q paginate.Query) string {
	return path + "/page?" + q.Values().Encode()
}

// parseFilters reads the schema's fields from query parameters.
func parseFilters(params url.Values, schema filter.Schema) filter.State {
	st := schema.Defaults()
	for _, f := range schema {
		if v := strings.TrimSpace(params.Get(f.Name)); v != "" {
			st[f.Name] = v
		}
	}
	return st
}

// HandleDashboard handles GET /dashboard: upcoming events, recent notes and downloads.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	data := DashboardPageData{PageData: h.renderer.page("Dashboard", "dashboard")}

	events, err := h.client.ListEvents(r.Context(), dashboardLimit)
	if err != nil {
		h.log.Warn().Err(err).Msg("events fetch failed")
		data.EventsError = errors.UserMessage(err)
	} else {
		data.Events = item.Rows(events)
	}

	notes, err := ops.ListNotes(r.Context(), h.db, ops.ListInput{Limit: dashboardLimit})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Notes = item.Rows(notes.Items)

	downloads, err := ops.ListDownloads(r.Context(), h.db, ops.ListInput{Limit: dashboardLimit})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Downloads = item.Rows(downloads.Items)

	h.renderer.renderPage(w, r, "dashboard", data)
}

// HandleJudgment handles GET /judgment/{id}: a single judgment.
func (h *Handlers) HandleJudgment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("judgment ID is required"))
		return
	}

	j, err := h.client.GetJudgment(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	row := j.Display()
	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:    h.renderer.page(row.Title, "judgments"),
		Judgment:    j,
		Row:         row,
		SummaryHTML: renderMarkdown(j.Summary),
	})
}

// HandleDownload handles POST /judgment/{id}/download: save the PDF locally.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	d, err := ops.Download(r.Context(), h.db, h.client, h.downloadsDir, ops.DownloadInput{
		JudgmentID: id,
		Title:      r.FormValue("title"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.log.Info().Str("judgment_id", id).Str("path", d.Path).Int64("bytes", d.Bytes).Msg("judgment downloaded")

	// Fragment request: return a notice
	if isFragment(r) {
		h.renderer.renderBlock(w, http.StatusOK, "detail", "download-result", d)
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, d)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/judgment/"+url.PathEscape(id), http.StatusSeeOther)
}

// HandleNotes handles GET /notes: list or search local notes, optionally
// showing one note's rendered body.
func (h *Handlers) HandleNotes(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	data := NotesPageData{
		PageData: h.renderer.page("Notes", "notes"),
		Query:    strings.TrimSpace(params.Get("q")),
	}
	limit := parseIntParam(params, "limit", ops.DefaultListLimit)
	offset := parseIntParam(params, "offset", 0)

	if data.Query != "" {
		result, err := ops.SearchNotes(r.Context(), h.db, ops.SearchNotesInput{Query: data.Query, Limit: limit, Offset: offset})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Notes, data.Pagination = result.Items, result.Pagination
	} else {
		result, err := ops.ListNotes(r.Context(), h.db, ops.ListInput{Limit: limit, Offset: offset})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Notes = make([]ops.NoteMatch, len(result.Items))
		for i, n := range result.Items {
			data.Notes[i] = ops.NoteMatch{Note: n}
		}
		data.Pagination = result.Pagination
	}

	if id := params.Get("id"); id != "" {
		n, err := ops.FetchNote(r.Context(), h.db, ops.FetchNoteInput{ID: id})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Selected = n
		data.BodyHTML = renderMarkdown(n.Body)
	}

	h.renderer.renderPage(w, r, "notes", data)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(params url.Values, name string, defaultVal int) int {
	s := params.Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
