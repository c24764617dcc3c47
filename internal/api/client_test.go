package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/juris/internal/audio"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/filter"
	"github.com/hpungsan/juris/internal/logging"
	"github.com/hpungsan/juris/internal/paginate"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Options{
		BaseURL:      srv.URL + "/",
		Token:        "secret",
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
		Logger:       logging.Nop(),
	})
	return c, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_HeadersAndKeysetPaging(t *testing.T) {
	var seen []*http.Request
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Clone(context.Background()))
		require.Equal(t, PathJudgments, r.URL.Path)

		if r.URL.Query().Get("cursor_id") == "" {
			writeJSON(w, map[string]any{
				"data": []map[string]any{
					{"id": 1, "title": "A", "decision_date": "2024-03-01"},
					{"id": "2", "title": "B", "decision_date": "2024-01-01"},
				},
				"next_cursor":     map[string]any{"decision_date": "2024-01-01", "id": 5},
				"pagination_info": map[string]any{"has_more": true},
			})
			return
		}
		writeJSON(w, map[string]any{
			"data":            []map[string]any{{"id": 3, "title": "C"}},
			"next_cursor":     nil,
			"pagination_info": map[string]any{"has_more": false},
		})
	})

	ctx := context.Background()
	page, err := c.ListJudgments(ctx, paginate.Query{Filters: filter.State{"year": "2024"}, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "1", page.Items[0].Key())
	require.Equal(t, "2", page.Items[1].Key())
	require.True(t, page.HasMore)
	require.Equal(t, "cursor_decision_date=2024-01-01&cursor_id=5", page.Next.String())

	page, err = c.ListJudgments(ctx, paginate.Query{Filters: filter.State{"year": "2024"}, Cursor: page.Next, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.False(t, page.HasMore)
	require.Nil(t, page.Next)

	require.Len(t, seen, 2)
	first := seen[0]
	require.Equal(t, "true", first.Header.Get("ngrok-skip-browser-warning"))
	require.Equal(t, "application/json", first.Header.Get("Accept"))
	require.Equal(t, "Bearer secret", first.Header.Get("Authorization"))
	require.Equal(t, "2024", first.URL.Query().Get("year"))
	require.Equal(t, "20", first.URL.Query().Get("limit"))

	second := seen[1].URL.Query()
	require.Equal(t, "2024-01-01", second.Get("cursor_decision_date"))
	require.Equal(t, "5", second.Get("cursor_id"))
}

func TestClient_MissingDataIsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []any{}})
	})

	_, err := c.ListMappings(context.Background(), paginate.Query{})
	require.True(t, errors.Is(err, errors.ErrMalformedResponse))
}

func TestClient_EmptyDataIsNotEnd(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data":            []any{},
			"next_cursor":     map[string]any{"id": 9},
			"pagination_info": map[string]any{"has_more": true},
		})
	})

	page, err := c.ListActs(context.Background(), paginate.Query{})
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.True(t, page.HasMore)
}

func TestClient_InvalidJSONIsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>ngrok warning</html>")
	})

	_, err := c.ListJudgments(context.Background(), paginate.Query{})
	require.True(t, errors.Is(err, errors.ErrMalformedResponse))
}

func TestClient_HTTPStatusErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/judgments/404":
			http.Error(w, "no such judgment", http.StatusNotFound)
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
		}
	})

	_, err := c.GetJudgment(context.Background(), "404")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = c.GetJudgment(context.Background(), "7")
	require.True(t, errors.Is(err, errors.ErrHTTPStatus))
	var jErr *errors.JurisError
	require.ErrorAs(t, err, &jErr)
	require.Equal(t, http.StatusForbidden, jErr.Status)
	require.Equal(t, "forbidden", jErr.Details["body"])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{"events": []map[string]any{{"id": 1, "title": "Moot court"}}})
	})

	events, err := c.ListEvents(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int32(3), calls.Load())
}

func TestClient_PersistentServerErrorSurfacesStatus(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	_, err := c.ListEvents(context.Background(), 0)
	require.True(t, errors.Is(err, errors.ErrHTTPStatus))
	require.Equal(t, int32(3), calls.Load())
}

func TestClient_NetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.ListJudgments(context.Background(), paginate.Query{})
	require.True(t, errors.Is(err, errors.ErrNetwork))
	require.Equal(t, "Could not reach the server. Check your connection and try again.", errors.UserMessage(err))
}

func TestClient_GetJudgmentUnwrapsData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]any{"id": 42, "petitioner": "State", "respondent": "Rao"}})
	})

	j, err := c.GetJudgment(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "42", j.Key())
	require.Equal(t, "State v. Rao", j.Display().Title)
}

func TestClient_BookmarksOffsetPaging(t *testing.T) {
	var offsets []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			offsets = append(offsets, r.URL.Query().Get("offset"))
			writeJSON(w, map[string]any{
				"bookmarks":  []map[string]any{{"id": 1, "item_type": "judgment", "item_id": 10}, {"id": 2, "item_type": "act", "item_id": 11}},
				"pagination": map[string]any{"limit": 2, "offset": 0, "has_more": true},
			})
		case http.MethodPost:
			var in BookmarkInput
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			require.Equal(t, "judgment", in.ItemType)
			writeJSON(w, map[string]any{"bookmark": map[string]any{"id": 99, "item_type": in.ItemType, "item_id": in.ItemID, "folder": in.Folder}})
		case http.MethodDelete:
			require.Equal(t, "/api/bookmarks/99", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	page, err := c.ListBookmarks(ctx, paginate.Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	off, ok := page.Next.Offset()
	require.True(t, ok)
	require.Equal(t, 2, off)
	require.Equal(t, []string{""}, offsets)

	b, err := c.AddBookmark(ctx, BookmarkInput{ItemType: "judgment", ItemID: "10", Folder: "Research"})
	require.NoError(t, err)
	require.Equal(t, "99", b.Key())
	require.Equal(t, "Research", b.Folder)

	require.NoError(t, c.DeleteBookmark(ctx, "99"))
}

func TestClient_AddBookmarkValidates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.AddBookmark(context.Background(), BookmarkInput{ItemType: "podcast", ItemID: "1"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = c.AddBookmark(context.Background(), BookmarkInput{ItemType: "act"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestClient_Chat(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathChat, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "hello", body["message"])
		writeJSON(w, map[string]any{"reply": "Hi there", "used_tools": true, "tool_used": "judgment_search"})
	})

	reply, err := c.Chat(context.Background(), "  hello ")
	require.NoError(t, err)
	require.Equal(t, "Hi there", reply.Reply)
	require.True(t, reply.UsedTools)
	require.Equal(t, "judgment_search", reply.ToolUsed)

	_, err = c.Chat(context.Background(), "   ")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestClient_SpeechMultipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathSpeech, r.URL.Path)
		f, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		require.Equal(t, "recording.webm", hdr.Filename)
		require.Equal(t, "audio/webm", hdr.Header.Get("Content-Type"))
		require.True(t, bytes.Equal([]byte("voice-bytes"), data))
		writeJSON(w, map[string]any{"reply": "Heard you"})
	})

	reply, err := c.Speech(context.Background(), &audio.Clip{Name: "recording.webm", ContentType: "audio/webm", Data: []byte("voice-bytes")})
	require.NoError(t, err)
	require.Equal(t, "Heard you", reply.Reply)
}

func TestClient_Summaries(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/ai/summarize/12", r.URL.Path)
		writeJSON(w, map[string]any{"summary": "**Held**: appeal allowed."})
	})

	summary, err := c.SummarizeJudgment(context.Background(), "12")
	require.NoError(t, err)
	require.Equal(t, "**Held**: appeal allowed.", summary)

	_, err = c.SummarizeVideo(context.Background(), "https://example.com/v.mp4")
	require.True(t, errors.Is(err, errors.ErrNotImplemented))
	require.Equal(t, "video summarization is not yet available", errors.UserMessage(err))
}

func TestClient_DownloadJudgment(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/judgments/12/pdf", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.7")
	})

	var buf bytes.Buffer
	n, err := c.DownloadJudgment(context.Background(), "12", &buf)
	require.NoError(t, err)
	require.Equal(t, int64(8), n)
	require.Equal(t, "%PDF-1.7", buf.String())
}
