// Package freshness tracks when the last liveness command (drive or stop)
// was accepted.
//
// A Tracker holds a single timestamp behind a mutex. Command handlers call
// Touch concurrently; the watchdog calls Age. The lock is held only for the
// assignment or read of the timestamp, so neither side can block the other
// for longer than that.
package freshness

import (
	"sync"
	"time"
)

// Clock is the time source used by a Tracker.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock (with its monotonic reading).
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Tracker holds the timestamp of the last accepted drive or stop command.
type Tracker struct {
	clock Clock

	mu   sync.Mutex
	last time.Time
}

// New creates a Tracker initialized to clock.Now(), so the watchdog does
// not trip before the first command arrives. A nil clock uses SystemClock.
func New(clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tracker{
		clock: clock,
		last:  clock.Now(),
	}
}

// NewStale creates a Tracker that is already older than any deadline.
// Use it when the robot must stay stopped until an operator speaks first.
func NewStale(clock Clock) *Tracker {
	t := New(clock)
	t.last = time.Time{}
	return t
}

// Touch records now as the last accepted command time.
func (t *Tracker) Touch() {
	t.mu.Lock()
	t.last = t.clock.Now()
	t.mu.Unlock()
}

// Age returns the time elapsed since the last Touch.
func (t *Tracker) Age() time.Duration {
	t.mu.Lock()
	last := t.last
	t.mu.Unlock()
	return t.clock.Now().Sub(last)
}

// LastTouch returns the stored timestamp.
func (t *Tracker) LastTouch() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
