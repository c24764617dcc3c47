package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/config"
	"github.com/hpungsan/juris/internal/db"
	"github.com/hpungsan/juris/internal/logging"
)

// recorder is a scripted backend that remembers request lines.
type recorder struct {
	mux *http.ServeMux

	mu       sync.Mutex
	requests []string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.requests = append(r.requests, req.Method+" "+req.URL.RequestURI())
	r.mu.Unlock()
	r.mux.ServeHTTP(w, req)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

// setupTest creates a temporary base dir with a database and a client for
// a scripted backend.
func setupTest(t *testing.T) (*deps, *recorder) {
	t.Helper()
	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	rec := &recorder{mux: http.NewServeMux()}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.APIBaseURL = srv.URL
	cfg.PageLimit = 2
	return &deps{
		db:      database,
		cfg:     cfg,
		client:  api.New(api.Options{BaseURL: srv.URL, Logger: logging.Nop()}),
		log:     logging.Nop(),
		baseDir: baseDir,
	}, rec
}

// runCLI runs one command line with stdin and returns what it printed.
func runCLI(t *testing.T, d *deps, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(d)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"juris"}, args...))
	return out.String(), err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	return m
}

// judgmentPages serves two pages keyed on cursor_id.
func judgmentPages(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cursor_id") == "" {
		writeJSON(w, map[string]any{
			"data":            []map[string]any{{"id": 1, "title": "A v. B", "court_name": "Supreme Court", "decision_date": "2024-02-01"}},
			"next_cursor":     map[string]any{"decision_date": "2024-02-01", "id": 1},
			"pagination_info": map[string]any{"has_more": true},
		})
		return
	}
	writeJSON(w, map[string]any{
		"data":            []map[string]any{{"id": 2, "title": "C v. D"}},
		"next_cursor":     nil,
		"pagination_info": map[string]any{"has_more": false},
	})
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single tag", input: "bail", expected: []string{"bail"}},
		{name: "tags with spaces", input: " bail , ndps ", expected: []string{"bail", "ndps"}},
		{name: "empty tags filtered", input: "bail,,ndps,", expected: []string{"bail", "ndps"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTags(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d tags, got %d", len(tt.expected), len(result))
			}
			for i, tag := range result {
				if tag != tt.expected[i] {
					t.Errorf("expected tag[%d]=%q, got %q", i, tt.expected[i], tag)
				}
			}
		})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		args []string
		cli  bool
		help bool
	}{
		{args: []string{"juris"}},
		{args: []string{"juris", "judgments"}, cli: true},
		{args: []string{"juris", "--help"}, cli: true, help: true},
		{args: []string{"juris", "help"}, cli: true, help: true},
		{args: []string{"juris", "-v"}, cli: true, help: true},
		{args: []string{"juris", "bogus"}},
	}
	for _, tt := range tests {
		if got := isCLIMode(tt.args); got != tt.cli {
			t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.cli)
		}
		if got := isHelpOrVersion(tt.args); got != tt.help {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.help)
		}
	}
}

func TestFlagName(t *testing.T) {
	if got := flagName("court_name"); got != "court-name" {
		t.Errorf("flagName = %q", got)
	}
	if got := flagName("year"); got != "year" {
		t.Errorf("flagName = %q", got)
	}
}

func TestCLIJudgments_Pages(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /judgments", judgmentPages)

	out, err := runCLI(t, d, "", "judgments", "--year", "2024", "--court-name", "Supreme Court", "--pages", "3")
	if err != nil {
		t.Fatalf("judgments failed: %v", err)
	}
	result := decode(t, out)
	items := result["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[1].(map[string]any)["title"] != "C v. D" {
		t.Errorf("second item = %v", items[1])
	}
	if result["has_more"] != false {
		t.Errorf("has_more = %v, want false", result["has_more"])
	}
	if _, ok := result["next_cursor"]; ok {
		t.Error("next_cursor should be omitted on the last page")
	}

	seen := rec.seen()
	if len(seen) != 2 {
		t.Fatalf("requests = %v, want 2 (stops when has_more is false)", seen)
	}
	if seen[0] != "GET /judgments?court_name=Supreme+Court&limit=2&year=2024" {
		t.Errorf("first request = %q", seen[0])
	}
	if !strings.Contains(seen[1], "cursor_id=1") || !strings.Contains(seen[1], "year=2024") {
		t.Errorf("second request = %q, want cursor and filters", seen[1])
	}
}

func TestCLIJudgments_NextCursor(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /judgments", judgmentPages)

	out, err := runCLI(t, d, "", "judgments", "--limit", "500")
	if err != nil {
		t.Fatalf("judgments failed: %v", err)
	}
	result := decode(t, out)
	if result["next_cursor"] != "cursor_decision_date=2024-02-01&cursor_id=1" {
		t.Errorf("next_cursor = %v", result["next_cursor"])
	}
	if seen := rec.seen(); !strings.Contains(seen[0], "limit=100") {
		t.Errorf("limit should be capped: %q", seen[0])
	}
}

func TestCLIJudgments_BackendError(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /judgments", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})

	_, err := runCLI(t, d, "", "judgments")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "[MALFORMED_RESPONSE]") {
		t.Errorf("error = %v", err)
	}
}

func TestCLIMappingsAndActs(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /law-mappings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data":            []map[string]any{{"id": "m1", "source_section": "302"}},
			"pagination_info": map[string]any{"has_more": false},
		})
	})
	rec.mux.HandleFunc("GET /acts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data":            []any{},
			"pagination_info": map[string]any{"has_more": false},
		})
	})

	out, err := runCLI(t, d, "", "mappings", "--mapping-type", "ipc_bns")
	if err != nil {
		t.Fatalf("mappings failed: %v", err)
	}
	if items := decode(t, out)["items"].([]any); len(items) != 1 {
		t.Errorf("mapping items = %v", items)
	}

	out, err = runCLI(t, d, "", "acts", "--state", "Kerala")
	if err != nil {
		t.Fatalf("acts failed: %v", err)
	}
	if items := decode(t, out)["items"].([]any); len(items) != 0 {
		t.Errorf("act items = %v, want empty array", items)
	}

	seen := rec.seen()
	if seen[0] != "GET /law-mappings?limit=2&mapping_type=ipc_bns" || seen[1] != "GET /acts?limit=2&state=Kerala" {
		t.Errorf("requests = %v", seen)
	}
}

func TestCLIJudgmentAndSummarize(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /judgments/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]any{"id": r.PathValue("id"), "title": "Kesavananda Bharati"}})
	})
	rec.mux.HandleFunc("POST /api/ai/summarize/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"summary": "Basic structure doctrine."})
	})

	out, err := runCLI(t, d, "", "judgment", "42")
	if err != nil {
		t.Fatalf("judgment failed: %v", err)
	}
	if got := decode(t, out)["title"]; got != "Kesavananda Bharati" {
		t.Errorf("title = %v", got)
	}

	out, err = runCLI(t, d, "", "summarize", "42")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	result := decode(t, out)
	if result["summary"] != "Basic structure doctrine." || result["id"] != "42" {
		t.Errorf("summary = %v", result)
	}

	_, err = runCLI(t, d, "", "judgment")
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("missing id error = %v", err)
	}
}

func TestCLIBookmarks(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"bookmarks":  []map[string]any{{"id": 7, "item_type": "judgment", "item_id": 42, "title": "Kesavananda"}},
			"pagination": map[string]any{"limit": 2, "offset": 0, "has_more": true},
		})
	})
	rec.mux.HandleFunc("POST /api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		in["id"] = 8
		writeJSON(w, map[string]any{"bookmark": in})
	})
	rec.mux.HandleFunc("DELETE /api/bookmarks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	out, err := runCLI(t, d, "", "bookmarks", "list", "--folder", "constitution")
	if err != nil {
		t.Fatalf("bookmarks list failed: %v", err)
	}
	result := decode(t, out)
	if result["next_cursor"] != "offset=1" {
		t.Errorf("next_cursor = %v", result["next_cursor"])
	}

	out, err = runCLI(t, d, "", "bookmarks", "add", "--folder", "bail", "--tags", "ndps, bail", "99")
	if err != nil {
		t.Fatalf("bookmarks add failed: %v", err)
	}
	added := decode(t, out)
	if added["item_id"] != "99" || added["item_type"] != "judgment" || added["folder"] != "bail" {
		t.Errorf("added = %v", added)
	}

	out, err = runCLI(t, d, "", "bookmarks", "rm", "8")
	if err != nil {
		t.Fatalf("bookmarks rm failed: %v", err)
	}
	if decode(t, out)["deleted"] != true {
		t.Errorf("rm output = %s", out)
	}

	seen := rec.seen()
	if seen[0] != "GET /api/bookmarks?folder=constitution&limit=2" || seen[2] != "DELETE /api/bookmarks/8" {
		t.Errorf("requests = %v", seen)
	}

	_, err = runCLI(t, d, "", "bookmarks", "add", "--type", "podcast", "1")
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("bad type error = %v", err)
	}
}

func TestCLIDownload(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /judgments/{id}/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 test"))
	})

	out, err := runCLI(t, d, "", "download", "--title", "A v. B", "42")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	result := decode(t, out)
	path, _ := result["path"].(string)
	if filepath.Dir(path) != filepath.Join(d.baseDir, db.DownloadsDir) {
		t.Errorf("path = %q, want under downloads dir", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF-1.4 test" {
		t.Errorf("file = %q, %v", data, err)
	}

	out, err = runCLI(t, d, "", "downloads")
	if err != nil {
		t.Fatalf("downloads failed: %v", err)
	}
	if items := decode(t, out)["items"].([]any); len(items) != 1 {
		t.Errorf("downloads = %v", items)
	}
}

func TestCLINotes(t *testing.T) {
	d, _ := setupTest(t)

	out, err := runCLI(t, d, "", "notes", "add", "--title", "Bail in NDPS", "--body", "Section 37 **twin conditions**", "--tags", "bail,ndps", "--kind", "judgment", "--item", "42")
	if err != nil {
		t.Fatalf("notes add failed: %v", err)
	}
	id, _ := decode(t, out)["id"].(string)
	if id == "" {
		t.Fatalf("notes add output = %s", out)
	}

	_, err = runCLI(t, d, "", "notes", "add", "--title", "bail  in ndps", "--body", "dup")
	if err == nil || !strings.Contains(err.Error(), "[NAME_ALREADY_EXISTS]") {
		t.Errorf("duplicate title error = %v", err)
	}

	out, err = runCLI(t, d, "", "notes", "show", "--title", "BAIL IN NDPS")
	if err != nil {
		t.Fatalf("notes show failed: %v", err)
	}
	if decode(t, out)["body"] != "Section 37 **twin conditions**" {
		t.Errorf("show = %s", out)
	}

	out, err = runCLI(t, d, "", "notes", "list")
	if err != nil {
		t.Fatalf("notes list failed: %v", err)
	}
	if items := decode(t, out)["items"].([]any); len(items) != 1 {
		t.Errorf("list = %v", items)
	}

	out, err = runCLI(t, d, "", "notes", "search", "twin", "conditions")
	if err != nil {
		t.Fatalf("notes search failed: %v", err)
	}
	items := decode(t, out)["items"].([]any)
	if len(items) != 1 || !strings.Contains(items[0].(map[string]any)["snippet"].(string), "<b>twin conditions</b>") {
		t.Errorf("search = %v", items)
	}

	if _, err := runCLI(t, d, "", "notes", "rm", id); err != nil {
		t.Fatalf("notes rm failed: %v", err)
	}
	_, err = runCLI(t, d, "", "notes", "show", id)
	if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
		t.Errorf("show after rm = %v", err)
	}
}

func TestCLIChat_OneShotAndVoiceFile(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("POST /api/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, map[string]any{"reply": "You asked: " + in["message"], "tool_used": "judgment_search"})
	})
	rec.mux.HandleFunc("POST /api/ai/speech", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("audio"); err != nil {
			http.Error(w, "no audio", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"reply": "Heard you."})
	})

	out, err := runCLI(t, d, "", "chat", "bail", "under", "NDPS")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	reply := decode(t, out)
	if reply["text"] != "You asked: bail under NDPS" || reply["sender"] != "bot" || reply["tool_used"] != "judgment_search" {
		t.Errorf("reply = %v", reply)
	}

	clip := filepath.Join(t.TempDir(), "question.wav")
	if err := os.WriteFile(clip, []byte("RIFF....WAVE"), 0600); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, d, "", "chat", "--voice-file", clip)
	if err != nil {
		t.Fatalf("chat --voice-file failed: %v", err)
	}
	if decode(t, out)["text"] != "Heard you." {
		t.Errorf("voice reply = %s", out)
	}

	_, err = runCLI(t, d, "", "chat", "--voice-file", filepath.Join(t.TempDir(), "missing.wav"))
	if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
		t.Errorf("missing file error = %v", err)
	}
}

func TestCLIChat_REPL(t *testing.T) {
	d, rec := setupTest(t)
	var calls atomic.Int32
	rec.mux.HandleFunc("POST /api/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"reply": "Hi! How can I help?"})
	})
	d.client = api.New(api.Options{BaseURL: d.cfg.APIBaseURL, RetryMax: 0, Logger: logging.Nop()})

	out, err := runCLI(t, d, "hello\n\nagain\n/clear\n/quit\nnever sent\n", "chat", "--new")
	if err != nil {
		t.Fatalf("chat REPL failed: %v", err)
	}
	want := []string{
		"bot: Hello! I'm your legal research assistant.",
		"bot: Hi! How can I help?",
		"bot: Sorry, I couldn't process that right now.",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if strings.Count(out, "bot: Hello!") != 2 {
		t.Errorf("expected the greeting again after /clear:\n%s", out)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("backend calls = %d, want 2", n)
	}

	// The cleared transcript is what the next run resumes.
	out, err = runCLI(t, d, "/quit\n", "chat")
	if err != nil {
		t.Fatalf("chat resume failed: %v", err)
	}
	if strings.Contains(out, "Hi! How can I help?") {
		t.Errorf("cleared transcript came back:\n%s", out)
	}
}

func TestCLIBrowse_ScrollToEnd(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /judgments", judgmentPages)

	out, err := runCLI(t, d, "\n\nq\n", "browse", "judgments")
	if err != nil {
		t.Fatalf("browse failed: %v", err)
	}
	for _, w := range []string{
		"filters: none",
		"   1. A v. B",
		"      Supreme Court · 2024-02-01",
		"-- more (press Enter) --",
		"   2. C v. D",
		"-- end --",
	} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if n := len(rec.seen()); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestCLIBrowse_FilterApplyRestarts(t *testing.T) {
	d, rec := setupTest(t)
	rec.mux.HandleFunc("GET /judgments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("year") == "1999" {
			writeJSON(w, map[string]any{"data": []any{}, "pagination_info": map[string]any{"has_more": false}})
			return
		}
		judgmentPages(w, r)
	})

	out, err := runCLI(t, d, "set year=1999\napply\nclear\nset court=x\nq\n", "browse", "judgments")
	if err != nil {
		t.Fatalf("browse failed: %v", err)
	}
	for _, w := range []string{"filters: year=1999", "No results", "unknown filter: court"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if strings.Count(out, "   1. A v. B") != 2 {
		t.Errorf("clear should reload the unfiltered first page:\n%s", out)
	}

	seen := rec.seen()
	if len(seen) != 3 || seen[1] != "GET /judgments?limit=2&year=1999" {
		t.Errorf("requests = %v", seen)
	}
}

func TestCLIBrowse_ErrorThenRetry(t *testing.T) {
	d, rec := setupTest(t)
	d.client = api.New(api.Options{BaseURL: d.cfg.APIBaseURL, RetryMax: 0, Logger: logging.Nop()})
	var calls atomic.Int32
	rec.mux.HandleFunc("GET /acts", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{
			"data":            []map[string]any{{"id": 3, "short_title": "Indian Contract Act"}},
			"pagination_info": map[string]any{"has_more": false},
		})
	})

	out, err := runCLI(t, d, "\nretry\nq\n", "browse", "acts")
	if err != nil {
		t.Fatalf("browse failed: %v", err)
	}
	if strings.Count(out, `(type "retry")`) != 2 {
		t.Errorf("expected the error banner on load and on Enter:\n%s", out)
	}
	if !strings.Contains(out, "   1. Indian Contract Act") {
		t.Errorf("retry should load the page:\n%s", out)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("backend calls = %d, want 2", n)
	}
}

func TestCLIBrowse_UnknownResource(t *testing.T) {
	d, _ := setupTest(t)
	_, err := runCLI(t, d, "", "browse", "podcasts")
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("error = %v", err)
	}
}
