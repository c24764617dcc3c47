package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/errors"
)

// HandleAddBookmark handles POST /bookmarks: save a bookmark for an item.
func (h *Handlers) HandleAddBookmark(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	var tags []string
	for _, t := range strings.Split(r.FormValue("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	b, err := h.client.AddBookmark(r.Context(), api.BookmarkInput{
		ItemType: r.FormValue("item_type"),
		ItemID:   r.FormValue("item_id"),
		Title:    r.FormValue("title"),
		Folder:   r.FormValue("folder"),
		Tags:     tags,
		Note:     r.FormValue("note"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Fragment request: return a notice
	if isFragment(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<div class="notice">Bookmarked %s</div>`, template.HTMLEscapeString(b.Display().Title))
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, b)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/bookmarks", http.StatusSeeOther)
}

// HandleDeleteBookmark handles DELETE /bookmarks/{id}.
func (h *Handlers) HandleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("bookmark ID is required"))
		return
	}

	if err := h.client.DeleteBookmark(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Fragment request: the script removes the row on an empty 200
	if isFragment(r) {
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": true,
			"id":      id,
		})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/bookmarks", http.StatusSeeOther)
}
