// Package poll provides the timer primitives shared by search boxes and the
// notification loop: value debouncing and interval polling. Both guarantee
// that no timer outlives its owner once stopped.
package poll

import (
	"sync"
	"time"
)

// Debouncer delays propagation of a rapidly-changing value until it has
// been stable for the quiet period. Each Set cancels the pending timer and
// starts a new one; only the latest value reaches the callback.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer that invokes fn with the latest value
// after delay with no further Set calls. fn runs on a timer goroutine.
func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Set replaces the pending value and restarts the quiet-period timer.
func (d *Debouncer[T]) Set(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			d.fn(value)
		}
	})
}

// SetDelay changes the quiet period for subsequent Set calls. A pending
// delivery keeps the delay it was scheduled with.
func (d *Debouncer[T]) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

// Stop cancels any pending delivery. The debouncer cannot be reused.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
