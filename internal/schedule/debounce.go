// Package schedule provides the debounced re-invocation policy for the live
// preview: rapid repeated triggers within a window collapse into the last
// request, and every invocation carries a monotonically increasing sequence
// token so a stale in-flight result can never overwrite a newer one.
package schedule

import (
	"sync"
	"time"
)

const DefaultWindow = 100 * time.Millisecond

// Debouncer coalesces bursts of triggers. Only the most recently scheduled
// function runs once the window elapses without a newer trigger.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	seq     uint64
	applied uint64
	pending func(token uint64)
	stopped bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{window: window}
}

// Trigger schedules fn to run after the debounce window, superseding any
// pending trigger. It returns the sequence token assigned to this
// invocation; fn receives the same token.
func (d *Debouncer) Trigger(fn func(token uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	token := d.seq
	d.pending = fn

	if d.stopped {
		return token
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
	return token
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	token := d.seq
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn(token)
	}
}

// Commit reports whether a result produced under the given token may be
// applied. It returns true only for tokens newer than every previously
// committed one, so out-of-order completions are discarded.
func (d *Debouncer) Commit(token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if token <= d.applied {
		return false
	}
	d.applied = token
	return true
}

// Stop cancels any pending trigger. Further triggers still allocate tokens
// but never fire.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}
