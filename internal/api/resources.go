package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/item"
	"github.com/hpungsan/juris/internal/paginate"
)

// Resource paths.
const (
	PathJudgments = "/judgments"
	PathMappings  = "/law-mappings"
	PathActs      = "/acts"
	PathBookmarks = "/api/bookmarks"
	PathEvents    = "/api/events"
)

// cursorEnvelope is the shape of cursor-paginated list responses.
type cursorEnvelope[T any] struct {
	Data           *[]T           `json:"data"`
	NextCursor     map[string]any `json:"next_cursor"`
	PaginationInfo struct {
		HasMore bool `json:"has_more"`
	} `json:"pagination_info"`
}

// listCursor fetches one page of a cursor-paginated resource.
func listCursor[T any](ctx context.Context, c *Client, path string, q paginate.Query) (*paginate.Page[T], error) {
	var env cursorEnvelope[T]
	if err := c.decodeJSON(ctx, request{method: http.MethodGet, path: path, query: q.Values()}, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, errors.NewMalformedResponse(path, "missing data array")
	}
	next, err := paginate.KeysetCursor(env.NextCursor)
	if err != nil {
		return nil, errors.NewMalformedResponse(path, err.Error())
	}
	return &paginate.Page[T]{
		Items:   *env.Data,
		Next:    next,
		HasMore: env.PaginationInfo.HasMore,
	}, nil
}

// ListJudgments fetches one page of judgments.
func (c *Client) ListJudgments(ctx context.Context, q paginate.Query) (*paginate.Page[item.Judgment], error) {
	return listCursor[item.Judgment](ctx, c, PathJudgments, q)
}

// ListMappings fetches one page of law mappings.
func (c *Client) ListMappings(ctx context.Context, q paginate.Query) (*paginate.Page[item.Mapping], error) {
	return listCursor[item.Mapping](ctx, c, PathMappings, q)
}

// ListActs fetches one page of acts.
func (c *Client) ListActs(ctx context.Context, q paginate.Query) (*paginate.Page[item.Act], error) {
	return listCursor[item.Act](ctx, c, PathActs, q)
}

// GetJudgment fetches one judgment. The backend answers with either the bare
// object or {"data": {...}}.
func (c *Client) GetJudgment(ctx context.Context, id string) (*item.Judgment, error) {
	esc, err := escapeID(id)
	if err != nil {
		return nil, err
	}
	path := PathJudgments + "/" + esc

	var raw json.RawMessage
	if err := c.decodeJSON(ctx, request{method: http.MethodGet, path: path}, &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, errors.NewMalformedResponse(path, "expected an object")
	}
	if len(wrapped.Data) > 0 && string(wrapped.Data) != "null" {
		raw = wrapped.Data
	}

	var j item.Judgment
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, errors.NewMalformedResponse(path, err.Error())
	}
	if j.ID == "" {
		j.ID = item.ID(id)
	}
	return &j, nil
}

// DownloadJudgment streams a judgment's PDF into w and returns the byte count.
func (c *Client) DownloadJudgment(ctx context.Context, id string, w io.Writer) (int64, error) {
	esc, err := escapeID(id)
	if err != nil {
		return 0, err
	}
	path := PathJudgments + "/" + esc + "/pdf"

	resp, err := c.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.NewNetwork(http.MethodGet, path, err)
	}
	if n == 0 {
		return 0, errors.NewMalformedResponse(path, "empty document")
	}
	return n, nil
}

// bookmarkEnvelope is the shape of the bookmarks list response.
type bookmarkEnvelope struct {
	Bookmarks  *[]item.Bookmark `json:"bookmarks"`
	Pagination struct {
		Limit   int  `json:"limit"`
		Offset  int  `json:"offset"`
		HasMore bool `json:"has_more"`
	} `json:"pagination"`
}

// ListBookmarks fetches one page of bookmarks. Bookmarks are offset-paginated;
// the next cursor is the offset after the returned rows.
func (c *Client) ListBookmarks(ctx context.Context, q paginate.Query) (*paginate.Page[item.Bookmark], error) {
	var env bookmarkEnvelope
	if err := c.decodeJSON(ctx, request{method: http.MethodGet, path: PathBookmarks, query: q.Values()}, &env); err != nil {
		return nil, err
	}
	if env.Bookmarks == nil {
		return nil, errors.NewMalformedResponse(PathBookmarks, "missing bookmarks array")
	}

	offset := env.Pagination.Offset
	if sent, ok := q.Cursor.Offset(); ok && offset == 0 {
		offset = sent
	}
	page := &paginate.Page[item.Bookmark]{
		Items:   *env.Bookmarks,
		HasMore: env.Pagination.HasMore,
	}
	if page.HasMore {
		page.Next = paginate.OffsetCursor(offset + len(page.Items))
	}
	return page, nil
}

// BookmarkInput is the body of an add-bookmark request.
type BookmarkInput struct {
	ItemType string   `json:"item_type"`
	ItemID   string   `json:"item_id"`
	Title    string   `json:"title,omitempty"`
	Folder   string   `json:"folder,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// AddBookmark saves a bookmark and returns it as stored.
func (c *Client) AddBookmark(ctx context.Context, in BookmarkInput) (*item.Bookmark, error) {
	if strings.TrimSpace(in.ItemType) == "" {
		return nil, errors.NewInvalidRequest("item_type is required")
	}
	if _, err := item.ParseKind(in.ItemType); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if strings.TrimSpace(in.ItemID) == "" {
		return nil, errors.NewInvalidRequest("item_id is required")
	}

	r, err := jsonRequest(http.MethodPost, PathBookmarks, in)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.decodeJSON(ctx, r, &raw); err != nil {
		return nil, err
	}

	// Accept {"bookmark": {...}}, {"data": {...}} or the bare object.
	var wrapped struct {
		Bookmark *item.Bookmark `json:"bookmark"`
		Data     *item.Bookmark `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, errors.NewMalformedResponse(PathBookmarks, "expected an object")
	}
	switch {
	case wrapped.Bookmark != nil:
		return wrapped.Bookmark, nil
	case wrapped.Data != nil:
		return wrapped.Data, nil
	}
	var b item.Bookmark
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, errors.NewMalformedResponse(PathBookmarks, err.Error())
	}
	if b.ItemID == "" {
		b.ItemType, b.ItemID, b.Title, b.Folder, b.Tags, b.Note =
			in.ItemType, item.ID(in.ItemID), in.Title, in.Folder, in.Tags, in.Note
	}
	return &b, nil
}

// DeleteBookmark removes a bookmark.
func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	esc, err := escapeID(id)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, request{method: http.MethodDelete, path: PathBookmarks + "/" + esc})
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// ListEvents fetches upcoming events for the dashboard.
func (c *Client) ListEvents(ctx context.Context, limit int) ([]item.Event, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var env struct {
		Events *[]item.Event `json:"events"`
	}
	if err := c.decodeJSON(ctx, request{method: http.MethodGet, path: PathEvents, query: q}, &env); err != nil {
		return nil, err
	}
	if env.Events == nil {
		return nil, errors.NewMalformedResponse(PathEvents, "missing events array")
	}
	return *env.Events, nil
}
