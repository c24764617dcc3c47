package ops

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/juris/internal/db"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/item"
)

// Search limits
const (
	MaxQueryLength     = 200
	MaxSnippetChars    = 300
	snippetLeadChars   = 80
	snippetOpenMarker  = "\x02"
	snippetCloseMarker = "\x03"
)

// SearchNotesInput contains parameters for the SearchNotes operation.
type SearchNotesInput struct {
	Query  string // required
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// NoteMatch is a note summary with a match snippet.
type NoteMatch struct {
	item.Note
	// Snippet is HTML-safe: user content is escaped; only <b>...</b>
	// highlight tags are present.
	Snippet string `json:"snippet"`
}

// SearchNotesOutput contains the result of the SearchNotes operation.
type SearchNotesOutput struct {
	Items      []NoteMatch `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Sort       string      `json:"sort"`
}

// SearchNotes finds notes whose title or body contains the query,
// case-insensitively, most recently updated first.
func SearchNotes(ctx context.Context, database *sql.DB, input SearchNotesInput) (*SearchNotesOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	limit := clampLimit(input.Limit)
	offset := max(input.Offset, 0)

	notes, total, err := db.SearchNotes(ctx, database, query, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]NoteMatch, len(notes))
	for i, n := range notes {
		source := n.Body
		if !containsFold(source, query) {
			source = n.Title
		}
		snippet := escapeSnippetHTML(buildSnippet(source, query))
		snippet = truncateSnippet(snippet, MaxSnippetChars)

		n.Body = ""
		items[i] = NoteMatch{Note: n, Snippet: snippet}
	}

	return &SearchNotesOutput{
		Items:      items,
		Pagination: newPagination(limit, offset, len(items), total),
		Sort:       "updated_at_desc",
	}, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// buildSnippet returns text around the first match of query with the match
// wrapped in highlight markers. Text that changes byte length when lowercased
// is returned from the start without a highlight.
func buildSnippet(text, query string) string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(query))
	if idx < 0 || len(lower) != len(text) {
		return text
	}
	end := idx + len(query)

	start := 0
	prefix := ""
	if idx > snippetLeadChars {
		start = idx - snippetLeadChars
		for start < idx && !utf8.RuneStart(text[start]) {
			start++
		}
		if sp := strings.IndexByte(text[start:idx], ' '); sp >= 0 {
			start += sp + 1
		}
		prefix = "..."
	}

	return prefix + text[start:idx] + snippetOpenMarker + text[idx:end] + snippetCloseMarker + text[end:]
}

// truncateSnippet cuts an escaped snippet to about maxChars visible
// characters. Highlight tags and entities count as markup, a cut never
// lands inside one, and a highlight left open is closed.
func truncateSnippet(s string, maxChars int) string {
	if maxChars <= 0 {
		return "..."
	}

	var (
		visible   int
		cut       int
		bold      bool
		lastSpace = -1
		spaceBold bool
	)
	for cut < len(s) && visible < maxChars {
		rest := s[cut:]
		switch {
		case strings.HasPrefix(rest, "<b>"):
			bold = true
			cut += len("<b>")
			continue
		case strings.HasPrefix(rest, "</b>"):
			bold = false
			cut += len("</b>")
			continue
		case rest[0] == '&':
			if semi := strings.IndexByte(rest, ';'); semi > 0 {
				cut += semi + 1
				visible++
				continue
			}
		case rest[0] == ' ':
			lastSpace, spaceBold = cut, bold
		}
		_, size := utf8.DecodeRuneInString(rest)
		cut += size
		visible++
	}
	if strings.HasPrefix(s[cut:], "</b>") {
		cut += len("</b>")
		bold = false
	}
	if cut >= len(s) {
		return s
	}

	out := s[:cut]
	if lastSpace > cut/2 {
		out, bold = s[:lastSpace], spaceBold
	}
	if bold {
		out += "</b>"
	}
	return out + "..."
}

// escapeSnippetHTML escapes note text and turns the highlight markers placed
// by buildSnippet into <b> tags. Note bodies are user content and may
// contain HTML.
func escapeSnippetHTML(s string) string {
	var b strings.Builder
	for {
		open := strings.Index(s, snippetOpenMarker)
		if open < 0 {
			break
		}
		end := strings.Index(s[open:], snippetCloseMarker)
		if end < 0 {
			break
		}
		end += open
		b.WriteString(html.EscapeString(s[:open]))
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(s[open+len(snippetOpenMarker) : end]))
		b.WriteString("</b>")
		s = s[end+len(snippetCloseMarker):]
	}
	b.WriteString(html.EscapeString(s))
	return b.String()
}
