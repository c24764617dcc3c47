package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/chat"
	"github.com/hpungsan/juris/internal/config"
	"github.com/hpungsan/juris/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ChatSessionID is the persisted transcript the web chatbot resumes.
const ChatSessionID = "web"

// Options configures NewServer.
type Options struct {
	Version      string
	Bind         string
	Port         int
	DownloadsDir string
}

// NewServer creates and configures the HTTP server for the Juris web UI.
func NewServer(ctx context.Context, db *sql.DB, cfg *config.Config, client *api.Client, log zerolog.Logger, opts Options) (*http.Server, error) {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	session, err := chat.Resume(ctx, client, chat.Options{
		ID:            ChatSessionID,
		Store:         ops.NewChatStore(db),
		Logger:        log,
		VoiceMaxBytes: cfg.VoiceMaxBytes,
	})
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		db:           db,
		cfg:          cfg,
		client:       client,
		chat:         session,
		downloadsDir: opts.DownloadsDir,
		renderer:     NewRenderer(templateSub, opts.Version, log),
		log:          log,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// routes registers every page and fragment endpoint.
func (h *Handlers) routes(static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /dashboard", h.HandleDashboard)

	for _, res := range h.listResources() {
		mux.HandleFunc("GET "+res.path, h.listPage(res))
		mux.HandleFunc("GET "+res.path+"/page", h.listRows(res))
	}

	mux.HandleFunc("GET /judgment/{id}", h.HandleJudgment)
	mux.HandleFunc("POST /judgment/{id}/download", h.HandleDownload)

	mux.HandleFunc("POST /bookmarks", h.HandleAddBookmark)
	mux.HandleFunc("DELETE /bookmarks/{id}", h.HandleDeleteBookmark)

	mux.HandleFunc("GET /chatbot", h.HandleChat)
	mux.HandleFunc("POST /chatbot/messages", h.HandleChatMessage)
	mux.HandleFunc("POST /chatbot/voice", h.HandleChatVoice)
	mux.HandleFunc("POST /chatbot/clear", h.HandleChatClear)

	mux.HandleFunc("GET /notes", h.HandleNotes)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; media-src 'self' blob:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Msgf("Juris UI running at http://%s", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
