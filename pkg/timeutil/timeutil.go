// Package timeutil provides the clock abstraction and day-based helpers
// used by the engine. All stored timestamps are UTC.
package timeutil

import (
	"sync"
	"time"
)

// Day is a 24-hour duration. Thresholds in configuration are expressed in days.
const Day = 24 * time.Hour

// Days converts a whole number of days to a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * Day
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock returns wall-clock time in UTC.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock is a manually advanced clock for tests and replays.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t.UTC()}
}

// Now returns the frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
