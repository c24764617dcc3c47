package filter

import (
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/juris/internal/errors"
)

// DefaultDelay is the debounce window for filter edits.
const DefaultDelay = 500 * time.Millisecond

// Panel collects filter edits and emits a snapshot once edits stop for Delay,
// or immediately on Apply and Clear. Snapshots go to OnChange, whose consumer
// restarts pagination from scratch.
type Panel struct {
	schema   Schema
	delay    time.Duration
	onChange func(State)

	mu      sync.Mutex
	values  State
	timer   *time.Timer
	seq     uint64 // bumped on every edit; a timer only emits if its seq is current
	emitted State
	closed  bool
}

// NewPanel creates a panel for schema. A non-positive delay uses DefaultDelay.
func NewPanel(schema Schema, delay time.Duration, onChange func(State)) *Panel {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Panel{
		schema:   schema,
		delay:    delay,
		onChange: onChange,
		values:   schema.Defaults(),
	}
}

// Values returns a copy of the current (possibly not yet emitted) values.
func (p *Panel) Values() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values.Clone()
}

// Set edits one field and (re)starts the debounce timer.
func (p *Panel) Set(name, value string) error {
	if !p.schema.Has(name) {
		return errors.NewInvalidRequest("unknown filter: " + name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}

	p.values[name] = strings.TrimSpace(value)
	p.seq++
	seq := p.seq

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, func() { p.fire(seq) })
	return nil
}

// Apply emits the current values now, cancelling any pending debounce.
func (p *Panel) Apply() {
	p.emitNow(false)
}

// Clear resets every field to its default and emits immediately.
func (p *Panel) Clear() {
	p.emitNow(true)
}

// Close stops the pending timer; later edits are ignored.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.seq++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Panel) emitNow(reset bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if reset {
		p.values = p.schema.Defaults()
	}
	p.seq++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	snapshot := p.values.Clone()
	p.emitted = snapshot.Clone()
	p.mu.Unlock()

	if p.onChange != nil {
		p.onChange(snapshot)
	}
}

func (p *Panel) fire(seq uint64) {
	p.mu.Lock()
	if p.closed || seq != p.seq {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	snapshot := p.values.Clone()
	// Edits that net out to the last emitted state don't restart pagination.
	if p.emitted != nil && snapshot.Equal(p.emitted) {
		p.mu.Unlock()
		return
	}
	p.emitted = snapshot.Clone()
	p.mu.Unlock()

	if p.onChange != nil {
		p.onChange(snapshot)
	}
}
