// Package debounce coalesces bursts of triggers into a single signal once the triggers
// stop for a quiet period.
package debounce

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const DefaultQuietPeriod = time.Second

type Debouncer struct {
	mu      sync.Mutex
	clock   clock.Clock
	quiet   time.Duration
	timer   *clock.Timer
	gen     uint64
	stopped bool
	fired   chan struct{}
}

func New(quiet time.Duration, opts ...func(*Debouncer)) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	d := &Debouncer{
		clock: clock.New(),
		quiet: quiet,
		fired: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func WithClock(c clock.Clock) func(*Debouncer) {
	return func(d *Debouncer) {
		d.clock = c
	}
}

// Trigger restarts the quiet period. Only the timer armed by the latest trigger can fire.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || gen != d.gen {
		return
	}
	d.timer = nil
	select {
	case d.fired <- struct{}{}:
	default:
	}
}

// C receives once per quiet period that followed at least one trigger. Signals that are
// not consumed collapse into one.
func (d *Debouncer) C() <-chan struct{} {
	return d.fired
}

// Pending reports whether a trigger is waiting for its quiet period to elapse.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any armed timer. Triggers after Stop are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
