package search

import (
	"sync"
	"time"
)

// Deferred runs at most one pending task after a quiet interval. Scheduling a
// new task supersedes the pending one. After Cancel returns no task scheduled
// before it will start; after Close returns no task is running or will run.
type Deferred struct {
	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool

	// held while a task runs so Close can wait for it
	running sync.Mutex
}

// Schedule arranges for fn to run after d unless superseded or cancelled.
// It is a no-op once the handle is closed.
func (d *Deferred) Schedule(after time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(after, func() {
		d.running.Lock()
		defer d.running.Unlock()

		d.mu.Lock()
		live := !d.closed && d.gen == gen
		if live {
			d.timer = nil
		}
		d.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Pending reports whether a task is waiting to fire.
func (d *Deferred) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil && !d.closed
}

// Cancel drops the pending task, if any.
func (d *Deferred) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Close cancels the pending task, waits for a running one to finish and
// disables the handle. It must not be called from inside a scheduled task.
func (d *Deferred) Close() {
	d.mu.Lock()
	d.closed = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.running.Lock()
	d.running.Unlock()
}
