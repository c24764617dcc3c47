package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/juris/internal/api"
	"github.com/hpungsan/juris/internal/audio"
	"github.com/hpungsan/juris/internal/chat"
	"github.com/hpungsan/juris/internal/config"
	"github.com/hpungsan/juris/internal/db"
	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/filter"
	"github.com/hpungsan/juris/internal/item"
	"github.com/hpungsan/juris/internal/mcp"
	"github.com/hpungsan/juris/internal/ops"
	"github.com/hpungsan/juris/internal/paginate"
	"github.com/hpungsan/juris/internal/web"
)

// chatSessionID is the persisted transcript the chat command resumes by default.
const chatSessionID = "cli"

// deps carries what commands need at run time. Fields may be nil while
// only help or version is printed.
type deps struct {
	db      *sql.DB
	cfg     *config.Config
	client  *api.Client
	log     zerolog.Logger
	baseDir string
}

// listSpec binds a paginated resource to its filter schema and fetcher.
type listSpec[T item.Item] struct {
	name   string
	usage  string
	schema filter.Schema
	fetch  func(*api.Client, context.Context, paginate.Query) (*paginate.Page[T], error)
}

func (s listSpec[T]) fetcher(client *api.Client) paginate.Fetcher[T] {
	return func(ctx context.Context, q paginate.Query) (*paginate.Page[T], error) {
		return s.fetch(client, ctx, q)
	}
}

var (
	judgmentList = listSpec[item.Judgment]{"judgments", "Search judgments", filter.JudgmentSchema, (*api.Client).ListJudgments}
	mappingList  = listSpec[item.Mapping]{"mappings", "Search law mappings", filter.MappingSchema, (*api.Client).ListMappings}
	actList      = listSpec[item.Act]{"acts", "Search acts", filter.ActSchema, (*api.Client).ListActs}
	bookmarkList = listSpec[item.Bookmark]{"list", "List bookmarks", filter.BookmarkSchema, (*api.Client).ListBookmarks}
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "juris",
		Usage:   "Legal research client: judgments, acts, law mappings, bookmarks and AI chat",
		Version: Version,
		Commands: []*cli.Command{
			listCmd(d, judgmentList),
			judgmentCmd(d),
			summarizeCmd(d),
			listCmd(d, mappingList),
			listCmd(d, actList),
			browseCmd(d),
			bookmarksCmd(d),
			downloadCmd(d),
			downloadsCmd(d),
			notesCmd(d),
			chatCmd(d),
			serveCmd(d),
			mcpCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// flagName maps a filter field to its flag, e.g. court_name → court-name.
func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func filterFlags(schema filter.Schema) []cli.Flag {
	flags := make([]cli.Flag, 0, len(schema))
	for _, f := range schema {
		flags = append(flags, &cli.StringFlag{Name: flagName(f.Name), Usage: f.Label})
	}
	return flags
}

func filtersFromFlags(c *cli.Context, schema filter.Schema) filter.State {
	st := schema.Defaults()
	for _, f := range schema {
		if c.IsSet(flagName(f.Name)) {
			st[f.Name] = c.String(flagName(f.Name))
		}
	}
	return st
}

// listOutput is the JSON shape of a list command.
type listOutput[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// listCmd creates a command that fetches one or more pages of a resource.
func listCmd[T item.Item](d *deps, spec listSpec[T]) *cli.Command {
	flags := filterFlags(spec.schema)
	flags = append(flags,
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Page size (default from config, max 100)"},
		&cli.IntFlag{Name: "pages", Aliases: []string{"p"}, Value: 1, Usage: "Number of pages to fetch"},
	)
	return &cli.Command{
		Name:  spec.name,
		Usage: spec.usage,
		Flags: flags,
		Action: func(c *cli.Context) error {
			limit := c.Int("limit")
			if limit <= 0 {
				limit = d.cfg.PageLimit
			}
			limit = min(limit, ops.MaxListLimit)

			ctrl := paginate.NewController(spec.fetcher(d.client), limit, d.log)
			defer ctrl.Close()

			if err := ctrl.Reset(c.Context, filtersFromFlags(c, spec.schema)); err != nil {
				return outputError(err)
			}
			for i := 1; i < c.Int("pages") && ctrl.HasMore(); i++ {
				if err := ctrl.LoadMore(c.Context); err != nil {
					return outputError(err)
				}
			}

			st := ctrl.State()
			out := listOutput[T]{Items: st.Items, HasMore: st.HasMore}
			if out.Items == nil {
				out.Items = []T{}
			}
			if st.HasMore {
				out.NextCursor = st.Cursor.String()
			}
			return outputJSON(c, out)
		},
	}
}

// judgmentCmd creates the judgment command.
func judgmentCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "judgment",
		Usage:     "Fetch one judgment",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "judgment id")
			if err != nil {
				return outputError(err)
			}
			j, err := d.client.GetJudgment(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, j)
		},
	}
}

// summarizeCmd creates the summarize command.
func summarizeCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Ask the assistant to summarize a judgment",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := firstArg(c, "judgment id")
			if err != nil {
				return outputError(err)
			}
			summary, err := d.client.SummarizeJudgment(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]string{"id": id, "summary": summary})
		},
	}
}

// bookmarksCmd creates the bookmarks command group.
func bookmarksCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "bookmarks",
		Usage: "List, add and remove bookmarks",
		Subcommands: []*cli.Command{
			listCmd(d, bookmarkList),
			{
				Name:      "add",
				Usage:     "Bookmark an item",
				ArgsUsage: "<item-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(item.KindJudgment), Usage: "Item type: judgment|act|mapping"},
					&cli.StringFlag{Name: "title", Usage: "Display title"},
					&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
					&cli.StringFlag{Name: "note", Usage: "Free-form note"},
				},
				Action: func(c *cli.Context) error {
					b, err := d.client.AddBookmark(c.Context, api.BookmarkInput{
						ItemType: c.String("type"),
						ItemID:   strings.TrimSpace(c.Args().First()),
						Title:    c.String("title"),
						Folder:   c.String("folder"),
						Tags:     parseTags(c.String("tags")),
						Note:     c.String("note"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, b)
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove a bookmark",
				ArgsUsage: "<bookmark-id>",
				Action: func(c *cli.Context) error {
					id, err := firstArg(c, "bookmark id")
					if err != nil {
						return outputError(err)
					}
					if err := d.client.DeleteBookmark(c.Context, id); err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"deleted": true, "id": id})
				},
			},
		},
	}
}

// downloadCmd creates the download command.
func downloadCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Save a judgment PDF under ~/.juris/downloads",
		ArgsUsage: "<judgment-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title shown in the downloads list"},
		},
		Action: func(c *cli.Context) error {
			dl, err := ops.Download(c.Context, d.db, d.client, filepath.Join(d.baseDir, db.DownloadsDir), ops.DownloadInput{
				JudgmentID: c.Args().First(),
				Title:      c.String("title"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, dl)
		},
	}
}

// downloadsCmd creates the downloads command.
func downloadsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "downloads",
		Usage: "List downloaded documents",
		Flags: pageFlags(),
		Action: func(c *cli.Context) error {
			out, err := ops.ListDownloads(c.Context, d.db, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// notesCmd creates the notes command group.
func notesCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "Local research notes",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Store a note (body from --body or stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Note title"},
					&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Markdown body (default: read stdin)"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
					&cli.StringFlag{Name: "kind", Usage: "Kind of the referenced item: judgment|act|mapping"},
					&cli.StringFlag{Name: "item", Usage: "ID of the referenced item"},
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.StoreModeError), Usage: "Collision mode: error|replace"},
				},
				Action: func(c *cli.Context) error {
					body := c.String("body")
					if body == "" {
						if !stdinHasData() {
							return outputError(errors.NewInvalidRequest("body must be given with --body or piped via stdin"))
						}
						var err error
						if body, err = readStdin(c.App.Reader); err != nil {
							return outputError(errors.NewInvalidRequest("failed to read stdin: " + err.Error()))
						}
					}
					out, err := ops.StoreNote(c.Context, d.db, d.cfg, ops.StoreNoteInput{
						Title:    c.String("title"),
						Body:     body,
						Tags:     parseTags(c.String("tags")),
						ItemKind: c.String("kind"),
						ItemID:   c.String("item"),
						Mode:     ops.StoreMode(c.String("mode")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "show",
				Usage:     "Show a note by id or --title",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title"},
					&cli.BoolFlag{Name: "no-body", Usage: "Omit the note body"},
				},
				Action: func(c *cli.Context) error {
					includeBody := !c.Bool("no-body")
					n, err := ops.FetchNote(c.Context, d.db, ops.FetchNoteInput{
						ID:          c.Args().First(),
						Title:       c.String("title"),
						IncludeBody: &includeBody,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, n)
				},
			},
			{
				Name:  "list",
				Usage: "List notes, most recently updated first",
				Flags: pageFlags(),
				Action: func(c *cli.Context) error {
					out, err := ops.ListNotes(c.Context, d.db, ops.ListInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "search",
				Usage:     "Search note titles and bodies",
				ArgsUsage: "<query>",
				Flags:     pageFlags(),
				Action: func(c *cli.Context) error {
					out, err := ops.SearchNotes(c.Context, d.db, ops.SearchNotesInput{
						Query:  strings.Join(c.Args().Slice(), " "),
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a note by id or --title",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.DeleteNote(c.Context, d.db, ops.DeleteNoteInput{
						ID:    c.Args().First(),
						Title: c.String("title"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
		},
	}
}

// chatCmd creates the chat command: one message from args, a recording
// from --voice-file, or an interactive session.
func chatCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Talk to the legal research assistant",
		ArgsUsage: "[message]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: chatSessionID, Usage: "Transcript to resume"},
			&cli.StringFlag{Name: "voice-file", Usage: "Send a recorded audio file instead of text"},
			&cli.BoolFlag{Name: "new", Usage: "Clear the transcript before sending"},
		},
		Action: func(c *cli.Context) error {
			session, err := chat.Resume(c.Context, d.client, chat.Options{
				ID:            c.String("session"),
				Store:         ops.NewChatStore(d.db),
				Logger:        d.log,
				VoiceMaxBytes: d.cfg.VoiceMaxBytes,
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("new") {
				if err := session.Reset(c.Context); err != nil {
					return outputError(err)
				}
			}

			if path := c.String("voice-file"); path != "" {
				reply, err := session.SendVoice(c.Context, audio.FileSource{Path: path})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, reply)
			}
			if c.NArg() > 0 {
				reply, err := session.Send(c.Context, strings.Join(c.Args().Slice(), " "))
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, reply)
			}
			return chatREPL(c.Context, c.App.Reader, c.App.Writer, session, audio.CommandSource{Argv: d.cfg.VoiceCommand})
		},
	}
}

// chatREPL reads one message per line. /voice records through mic,
// /clear resets the transcript and /quit leaves.
func chatREPL(ctx context.Context, r io.Reader, w io.Writer, session *chat.Session, mic audio.Source) error {
	for _, m := range session.Transcript() {
		printMessage(w, m)
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		var (
			reply chat.Message
			err   error
		)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := session.Reset(ctx); err != nil {
				fmt.Fprintf(w, "! %s\n", errors.UserMessage(err))
				continue
			}
			printMessage(w, session.Transcript()[0])
			continue
		case "/voice":
			fmt.Fprintln(w, "recording...")
			reply, err = session.SendVoice(ctx, mic)
		default:
			reply, err = session.Send(ctx, line)
		}

		switch {
		case err == nil, reply.Failed:
			printMessage(w, reply)
		case stderrors.Is(err, chat.ErrReset):
		default:
			fmt.Fprintf(w, "! %s\n", errors.UserMessage(err))
		}
	}
	return sc.Err()
}

func printMessage(w io.Writer, m chat.Message) {
	fmt.Fprintf(w, "%s: %s\n", m.Sender, m.Text)
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(c.Context, d.db, d.cfg, d.client, d.log, web.Options{
				Version:      Version,
				Bind:         c.String("bind"),
				Port:         c.Int("port"),
				DownloadsDir: filepath.Join(d.baseDir, db.DownloadsDir),
			})
			if err != nil {
				return outputError(err)
			}
			return web.Run(srv, d.log)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(c.Context, d.db, d.cfg, d.client, d.log, Version)
		},
	}
}

// Helper functions

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum items (default 20, max 100)"},
		&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
	}
}

// firstArg returns the first positional argument or an INVALID_REQUEST error.
func firstArg(c *cli.Context, what string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", errors.NewInvalidRequest(what + " is required")
	}
	return v, nil
}

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var jErr *errors.JurisError
	if stderrors.As(err, &jErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", jErr.Code, jErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from r.
func readStdin(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
