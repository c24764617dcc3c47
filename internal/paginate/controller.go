package paginate

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hpungsan/juris/internal/errors"
	"github.com/hpungsan/juris/internal/filter"
)

// Sentinel outcomes of LoadMore/Reset that are not fetch failures.
var (
	// ErrBusy is returned by LoadMore while another fetch is in flight.
	ErrBusy = stderrors.New("paginate: fetch already in progress")
	// ErrExhausted is returned by LoadMore after the backend reported has_more=false.
	ErrExhausted = stderrors.New("paginate: no more pages")
	// ErrStale is returned when a response arrived for a superseded filter set
	// (or after Close) and was discarded.
	ErrStale = stderrors.New("paginate: response superseded")
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = stderrors.New("paginate: controller closed")
)

// Fetcher fetches one page for a query.
type Fetcher[T any] func(ctx context.Context, q Query) (*Page[T], error)

// State is a read-only snapshot of a controller.
type State[T any] struct {
	Filters filter.State
	Items   []T
	Cursor  *Cursor
	HasMore bool
	Loading bool
	// Err is the user-visible message of the last failed fetch, cleared on success.
	Err string
	// Fetched reports whether the first page of the current filter set has resolved.
	Fetched bool
}

// Controller owns the accumulated items of one list view.
//
// Reset replaces the whole pagination state for a new filter set; LoadMore
// appends the next page. Every fetch carries the generation it was started
// under, and a Reset (or Close) moves the generation on and cancels the
// in-flight request, so a response for an old filter set can never land in
// the list.
type Controller[T any] struct {
	fetch Fetcher[T]
	limit int
	log   zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	filters filter.State
	items   []T
	cursor  *Cursor
	hasMore bool
	loading bool
	fetched bool
	errMsg  string
}

// NewController creates a controller. limit is the page size sent with every query.
func NewController[T any](fetch Fetcher[T], limit int, log zerolog.Logger) *Controller[T] {
	return &Controller[T]{
		fetch:   fetch,
		limit:   limit,
		log:     log,
		filters: filter.State{},
	}
}

// Reset starts over for filters: the cursor and accumulated items are cleared
// before the first page of the new set is requested, then that page replaces
// the (empty) list.
func (c *Controller[T]) Reset(ctx context.Context, filters filter.State) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.filters = filters.Clone()
	c.items = nil
	c.cursor = nil
	c.hasMore = false
	c.fetched = false
	c.errMsg = ""
	c.loading = true
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	q := Query{Filters: c.filters.Clone(), Limit: c.limit}
	c.mu.Unlock()

	return c.run(fetchCtx, cancel, gen, q, false)
}

// LoadMore fetches the page after the last cursor and appends it.
// Only one fetch runs at a time: while one is pending LoadMore returns
// ErrBusy rather than queueing.
func (c *Controller[T]) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.hasMore {
		c.mu.Unlock()
		return ErrExhausted
	}
	gen := c.gen
	c.loading = true
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	q := Query{Filters: c.filters.Clone(), Cursor: c.cursor, Limit: c.limit}
	c.mu.Unlock()

	return c.run(fetchCtx, cancel, gen, q, true)
}

func (c *Controller[T]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, q Query, appendPage bool) error {
	defer cancel()

	page, err := c.fetch(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.closed {
		c.log.Debug().Uint64("gen", gen).Uint64("current", c.gen).Msg("discarding superseded page")
		return ErrStale
	}

	c.loading = false
	c.cancel = nil

	if err == nil && page == nil {
		err = errors.NewMalformedResponse("page", "empty response")
	}
	if err != nil {
		c.errMsg = errors.UserMessage(err)
		c.log.Warn().Err(err).Bool("load_more", appendPage).Msg("page fetch failed")
		return err
	}

	if appendPage {
		c.items = append(c.items, page.Items...)
	} else {
		c.items = append([]T(nil), page.Items...)
	}
	c.cursor = page.Next
	c.hasMore = page.HasMore
	c.fetched = true
	c.errMsg = ""

	c.log.Debug().
		Int("page_items", len(page.Items)).
		Int("total_items", len(c.items)).
		Bool("has_more", c.hasMore).
		Msg("page merged")
	return nil
}

// Close cancels any in-flight fetch and discards its result. Later calls
// return ErrClosed.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
	c.loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// HasMore reports whether the backend announced another page.
func (c *Controller[T]) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore && !c.closed
}

// Loading reports whether a fetch is in flight.
func (c *Controller[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Len returns the number of accumulated items.
func (c *Controller[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// State returns a snapshot; the Items slice is a copy.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State[T]{
		Filters: c.filters.Clone(),
		Items:   append([]T(nil), c.items...),
		Cursor:  c.cursor,
		HasMore: c.hasMore,
		Loading: c.loading,
		Err:     c.errMsg,
		Fetched: c.fetched,
	}
}
