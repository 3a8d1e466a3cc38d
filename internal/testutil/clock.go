package testutil

import (
	"sync"
	"time"
)

// FixedClock is a settable wall clock for tests.
//
// It starts at a fixed instant and only moves when Set or Advance is called,
// so TTL expiry and history ordering can be exercised without sleeping.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// DefaultTestTime is the instant a FixedClock starts at when given the zero time.
var DefaultTestTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// NewFixedClock creates a clock frozen at start (DefaultTestTime if zero).
func NewFixedClock(start time.Time) *FixedClock {
	if start.IsZero() {
		start = DefaultTestTime
	}
	return &FixedClock{now: start.UTC()}
}

// Now returns the current frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
