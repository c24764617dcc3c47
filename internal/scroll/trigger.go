// Package scroll turns "the end of the list is visible" into at most one
// load-more request at a time.
package scroll

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/hpungsan/juris/internal/paginate"
)

// Status of a trigger.
type Status int

const (
	Idle Status = iota
	Triggered
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Triggered:
		return "triggered"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Loader is the part of a pagination controller the trigger drives.
type Loader interface {
	LoadMore(ctx context.Context) error
	HasMore() bool
	Loading() bool
	Len() int
}

// Trigger watches a sentinel's visibility.
//
// A visible sentinel fires one LoadMore. The trigger then waits for either
// the sentinel to leave view or a page with items to land before it can
// fire again, so a sentinel that stays on screen (short first page, tall
// window) does not spin. A failed fetch leaves it Triggered until Retry.
type Trigger struct {
	loader Loader

	mu      sync.Mutex
	status  Status
	visible bool
	armed   bool // false after firing until the sentinel leaves view or items arrive
	lastErr error
}

// New creates an idle trigger.
func New(loader Loader) *Trigger {
	return &Trigger{loader: loader, armed: true}
}

// Observe reports the sentinel's visibility. It returns true when the call
// started a fetch, together with that fetch's error.
func (t *Trigger) Observe(ctx context.Context, visible bool) (bool, error) {
	t.mu.Lock()
	wasVisible := t.visible
	t.visible = visible
	if !visible {
		if wasVisible {
			t.armed = true
		}
		t.mu.Unlock()
		return false, nil
	}
	if !t.canFire() {
		t.mu.Unlock()
		return false, nil
	}
	t.status = Triggered
	t.armed = false
	t.mu.Unlock()

	return true, t.load(ctx)
}

// Retry re-issues the fetch after an error. It is a no-op unless the last
// fetch failed.
func (t *Trigger) Retry(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if t.status != Triggered || t.lastErr == nil || t.loader.Loading() {
		t.mu.Unlock()
		return false, nil
	}
	t.mu.Unlock()
	return true, t.load(ctx)
}

// Reset returns the trigger to Idle for a new filter set.
func (t *Trigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Idle
	t.armed = true
	t.visible = false
	t.lastErr = nil
}

// Status returns the current status.
func (t *Trigger) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the error of the last fetch, if it failed.
func (t *Trigger) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// canFire must be called with mu held.
func (t *Trigger) canFire() bool {
	if t.status != Idle || !t.armed {
		return false
	}
	if !t.loader.HasMore() {
		t.status = Exhausted
		return false
	}
	return !t.loader.Loading()
}

func (t *Trigger) load(ctx context.Context) error {
	before := t.loader.Len()
	err := t.loader.LoadMore(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != Triggered {
		// Reset while the fetch was in flight.
		return err
	}

	switch {
	case stderrors.Is(err, paginate.ErrExhausted), stderrors.Is(err, paginate.ErrClosed):
		t.status = Exhausted
		t.lastErr = nil
		return nil
	case stderrors.Is(err, paginate.ErrBusy), stderrors.Is(err, paginate.ErrStale):
		// Someone else's fetch owns the list; stand down.
		t.status = Idle
		t.armed = true
		t.lastErr = nil
		return nil
	case err != nil:
		t.lastErr = err
		return err
	}

	t.lastErr = nil
	if !t.loader.HasMore() {
		t.status = Exhausted
		return nil
	}
	t.status = Idle
	if t.loader.Len() > before {
		t.armed = true
	}
	return nil
}
