// Package clock provides an injectable time source so that timer-driven
// logic (the flood-discovery interval) can be tested without waiting on
// the wall clock.
package clock

import (
	"sync"
	"time"
)

// Clock is a source of the current time that can be overridden for tests.
type Clock struct {
	mu    sync.Mutex
	nowFn func() time.Time
}

// New creates a Clock backed by the system clock.
func New() *Clock {
	return &Clock{nowFn: time.Now}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowFn()
}

// SetNowFunc overrides the time source, e.g. with a fake clock that only
// advances when a test tells it to.
func (c *Clock) SetNowFunc(f func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFn = f
}
