package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/filter"
	"github.com/hpungsan/juris/internal/item"
	"github.com/hpungsan/juris/internal/paginate"
	"github.com/hpungsan/juris/internal/scroll"
)

const browseHelp = `commands:
  <Enter>      load the next page
  set k=v      edit a filter (applied after a pause)
  apply        apply filters now
  clear        reset every filter
  retry        retry a failed page
  filters      show available filters
  q            quit`

// browseCmd creates the browse command.
func browseCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "browse",
		Usage:     "Scroll through judgments, mappings or acts interactively",
		ArgsUsage: "<judgments|mappings|acts>",
		Action: func(c *cli.Context) error {
			switch c.Args().First() {
			case "judgments":
				return browse(c, d, judgmentList)
			case "mappings":
				return browse(c, d, mappingList)
			case "acts":
				return browse(c, d, actList)
			default:
				return outputError(errors.NewInvalidRequest("browse needs one of: judgments, mappings, acts"))
			}
		},
	}
}

// browse runs the interactive list view. Each input line is one event:
// an empty line means the end of the list scrolled into view.
func browse[T item.Item](c *cli.Context, d *deps, spec listSpec[T]) error {
	ctx := c.Context
	w := c.App.Writer

	ctrl := paginate.NewController(spec.fetcher(d.client), d.cfg.PageLimit, d.log)
	defer ctrl.Close()
	v := &listView[T]{ctrl: ctrl, trig: scroll.New(ctrl), w: w}

	// The panel emits from its timer goroutine; only the latest snapshot matters.
	var (
		mu     sync.Mutex
		latest filter.State
	)
	changed := make(chan struct{}, 1)
	panel := filter.NewPanel(spec.schema, d.cfg.FilterDebounce(), func(s filter.State) {
		mu.Lock()
		latest = s
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer panel.Close()

	applyLatest := func() {
		mu.Lock()
		s := latest
		mu.Unlock()
		v.reset(ctx, s)
	}

	fmt.Fprintf(w, "%s (type \"help\" for commands)\n", spec.name)
	v.reset(ctx, spec.schema.Defaults())

	lines := readLines(c.App.Reader)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			applyLatest()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := v.command(ctx, panel, spec.schema, strings.TrimSpace(line)); quit {
				return nil
			}
			// apply and clear emit synchronously.
			select {
			case <-changed:
				applyLatest()
			default:
			}
		}
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// listView prints a controller's items as they accumulate.
type listView[T item.Item] struct {
	ctrl  *paginate.Controller[T]
	trig  *scroll.Trigger
	w     io.Writer
	shown int
}

func (v *listView[T]) reset(ctx context.Context, s filter.State) {
	v.trig.Reset()
	v.shown = 0
	if s.IsEmpty() {
		fmt.Fprintln(v.w, "filters: none")
	} else {
		fmt.Fprintf(v.w, "filters: %s\n", s.Params().Encode())
	}
	if err := v.ctrl.Reset(ctx, s); stderrors.Is(err, paginate.ErrStale) {
		return
	}
	v.render()
}

// command handles one input line and reports whether to quit.
func (v *listView[T]) command(ctx context.Context, panel *filter.Panel, schema filter.Schema, line string) bool {
	switch {
	case line == "":
		if st := v.ctrl.State(); !st.Fetched && st.Err != "" {
			fmt.Fprintf(v.w, "! %s (type \"retry\")\n", st.Err)
			return false
		}
		// The sentinel scrolls into view, then past it once the page prints.
		fired, _ := v.trig.Observe(ctx, true)
		_, _ = v.trig.Observe(ctx, false)
		switch {
		case fired:
			v.render()
		case v.trig.Status() == scroll.Exhausted:
			fmt.Fprintln(v.w, "-- end --")
		case v.trig.Err() != nil:
			fmt.Fprintf(v.w, "! %s (type \"retry\")\n", errors.UserMessage(v.trig.Err()))
		}
	case line == "q" || line == "quit":
		return true
	case line == "help":
		fmt.Fprintln(v.w, browseHelp)
	case line == "filters":
		for _, f := range schema {
			fmt.Fprintf(v.w, "  %-16s %s\n", f.Name, f.Label)
		}
	case line == "apply":
		panel.Apply()
	case line == "clear":
		panel.Clear()
	case line == "retry":
		st := v.ctrl.State()
		if !st.Fetched && st.Err != "" {
			// The first page failed; there is no cursor to resume from.
			v.reset(ctx, st.Filters)
			return false
		}
		if retried, _ := v.trig.Retry(ctx); retried {
			v.render()
		} else {
			fmt.Fprintln(v.w, "nothing to retry")
		}
	case strings.HasPrefix(line, "set "):
		name, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "set ")), "=")
		if !ok {
			fmt.Fprintln(v.w, "usage: set name=value")
			return false
		}
		if err := panel.Set(strings.TrimSpace(name), value); err != nil {
			fmt.Fprintf(v.w, "! %s\n", errors.UserMessage(err))
		}
	default:
		fmt.Fprintf(v.w, "unknown command %q (type \"help\")\n", line)
	}
	return false
}

// render prints rows not yet shown, then the list's footer: an error with
// a retry hint, the load-more sentinel, "No results" or the end marker.
func (v *listView[T]) render() {
	st := v.ctrl.State()
	for i := v.shown; i < len(st.Items); i++ {
		row := st.Items[i].Display()
		fmt.Fprintf(v.w, "%4d. %s\n", i+1, row.Title)
		if meta := joinMeta(row.Subtitle, row.Date); meta != "" {
			fmt.Fprintf(v.w, "      %s\n", meta)
		}
	}
	v.shown = len(st.Items)

	switch {
	case st.Err != "":
		fmt.Fprintf(v.w, "! %s (type \"retry\")\n", st.Err)
	case st.Fetched && st.HasMore:
		fmt.Fprintln(v.w, "-- more (press Enter) --")
	case st.Fetched && len(st.Items) == 0:
		fmt.Fprintln(v.w, "No results")
	case st.Fetched:
		fmt.Fprintln(v.w, "-- end --")
	}
}

func joinMeta(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " · ")
}
