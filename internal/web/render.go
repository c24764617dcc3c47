package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/juris/internal/chat"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/filter"
	"github.com/hpungsan/juris/internal/item"
	"github.com/hpungsan/juris/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "dashboard", "judgments", "mappings", ...
}

// FilterField is one input of a rendered filter form.
type FilterField struct {
	filter.Field
	Value string
}

// RowsData is the template data for one page of list rows. It renders the
// rows, then either a sentinel that loads Next, an inline error with a retry
// button, or nothing once the list is exhausted.
type RowsData struct {
	Rows    []item.Row
	Next    string // URL of the next page; empty when exhausted
	Retry   string // URL to retry after Error
	Error   string
	First   bool // first page of the list; an empty first page shows "No results"
	Deletes bool // rows get a delete button (bookmarks)
}

// ListPageData is the template data for the filtered list pages.
type ListPageData struct {
	PageData
	Action  string // form target, e.g. /judgments
	Filters []FilterField
	RowsData
}

// DetailPageData is the template data for the judgment detail page.
type DetailPageData struct {
	PageData
	Judgment     *item.Judgment
	Row          item.Row
	SummaryHTML  template.HTML
	Downloaded   *item.Download
	ErrorMessage string
}

// DashboardPageData is the template data for the dashboard.
type DashboardPageData struct {
	PageData
	Events      []item.Row
	EventsError string
	Notes       []item.Row
	Downloads   []item.Row
}

// ChatPageData is the template data for the chatbot page and its fragments.
type ChatPageData struct {
	PageData
	Messages []chat.Message
}

// NotesPageData is the template data for the notes page.
type NotesPageData struct {
	PageData
	Query      string
	Notes      []ops.NoteMatch
	Pagination ops.Pagination
	Selected   *item.Note
	BodyHTML   template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       zerolog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, log zerolog.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":          func(a, b int) int { return a + b },
		"formatTime":   formatTime,
		"formatClock": formatClock,
		"formatBytes":  formatBytes,
		"formatChars":  formatChars,
		"safeHTML":     func(s string) template.HTML { return template.HTML(s) },
		"markdown":     renderMarkdown,
	}

	// Parse layout and shared fragments as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html", "rows.html"))

	pages := map[string]string{
		"dashboard": "dashboard.html",
		"list":      "list.html",
		"detail":    "detail.html",
		"chat":      "chat.html",
		"notes":     "notes.html",
		"error":     "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// page returns PageData stamped with the renderer's version.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For fragment requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if isFragment(req) {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders a specific named block from a page template.
// Used for partial swaps that target a sub-section of the page.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.log.Error().Str("template", page).Msg("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error().Err(err).Str("template", page).Str("block", block).Msg("template execution failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var jErr *errors.JurisError
	if !stderrors.As(err, &jErr) {
		jErr = errors.NewInternal(err)
	}

	status := jErr.Status
	message := errors.UserMessage(jErr)
	if jErr.Code == errors.ErrInternal {
		r.log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
	}

	// Fragment request: return an inline banner
	if isFragment(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message" role="alert">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(jErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

// isFragment reports whether the page script asked for a partial.
func isFragment(req *http.Request) bool {
	return req != nil && req.Header.Get("X-Juris-Fragment") == "true"
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the source is omitted (goldmark's default), so user notes cannot inject markup.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// formatClock formats a chat timestamp as local clock time.
func formatClock(t time.Time) string {
	return t.Format("15:04")
}

// formatBytes renders a file size in binary units, e.g. "2.0 KiB".
func formatBytes(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}

// formatChars formats an integer with comma thousands separators.
func formatChars(n int) string {
	return humanize.Comma(int64(n))
}
