package clock

import (
	"sync"
	"time"
)

// MockClock is a settable Clock for tests.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

var _ Clock = (*MockClock)(nil)

// NewMock creates a MockClock set to the given time.
func NewMock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set sets the clock to the given time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
