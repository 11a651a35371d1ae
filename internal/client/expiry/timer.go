// Package expiry runs the session time-to-live countdown.
package expiry

import (
	"sync"
	"time"
)

// Timer runs at most one pending callback. Arming again replaces the
// previous arming; a callback whose arming was cancelled or replaced never
// runs, even if its underlying timer already fired.
type Timer struct {
	clock Clock

	mu    sync.Mutex
	gen   uint64
	stop  Stopper
	armed bool
}

// New returns a Timer driven by clock; nil means RealClock.
func New(clock Clock) *Timer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timer{clock: clock}
}

// Arm schedules fn after ttl and returns the arming's generation.
func (t *Timer) Arm(ttl time.Duration, fn func()) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		t.stop.Stop()
	}
	t.gen++
	gen := t.gen
	t.armed = true

	t.stop = t.clock.AfterFunc(ttl, func() {
		t.mu.Lock()
		if !t.armed || t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.armed = false
		t.stop = nil
		t.mu.Unlock()

		fn()
	})
	return gen
}

// Cancel disarms the timer. It is safe to call when nothing is armed.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		t.stop.Stop()
		t.stop = nil
	}
	t.armed = false
	t.gen++
}

// Armed reports whether a callback is pending.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Generation returns the generation of the latest arming or cancel.
func (t *Timer) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}
