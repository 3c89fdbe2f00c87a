package session

import (
	"sync"
	"time"
)

// IdleTimer terminates a session after a period with no qualifying user
// activity. It is armed only while a user is authenticated; Touch resets
// the countdown. Firing invokes onIdle exactly once per arming, and the
// timer is fully released on Disarm so nothing outlives the session that
// created it.
type IdleTimer struct {
	mu      sync.Mutex
	timeout time.Duration
	onIdle  func()
	timer   *time.Timer
	armed   bool
}

// NewIdleTimer creates a disarmed idle timer.
func NewIdleTimer(timeout time.Duration, onIdle func()) *IdleTimer {
	return &IdleTimer{timeout: timeout, onIdle: onIdle}
}

// Arm starts (or restarts) the countdown. Safe to call repeatedly.
func (t *IdleTimer) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = true
	t.resetLocked()
}

// Disarm stops the countdown and releases the timer.
func (t *IdleTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Touch resets the countdown. A touch on a disarmed timer does nothing.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return
	}
	t.resetLocked()
}

// SetTimeout changes the idle duration. An armed timer restarts with the
// new duration.
func (t *IdleTimer) SetTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	if t.armed {
		t.resetLocked()
	}
}

func (t *IdleTimer) resetLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.timeout, t.fire)
}

func (t *IdleTimer) fire() {
	t.mu.Lock()
	if !t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.timer = nil
	t.mu.Unlock()

	t.onIdle()
}
