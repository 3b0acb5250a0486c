package mocks

import (
	"sort"
	"sync"
	"time"

	"github.com/mcoot/livequiz/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// Timers registered with AfterFunc only fire when Advance moves past their deadline,
// and they fire synchronously on the goroutine calling Advance.
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
	timers      []*mockTimer
	seq         int
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

type mockTimer struct {
	clock    *MockClock
	deadline time.Time
	seq      int
	f        func()
	stopped  bool
	fired    bool
}

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{CurrentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

// AfterFunc registers f to be called once the clock has advanced by d
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &mockTimer{clock: c, deadline: c.CurrentTime.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by the given duration, firing due timers in deadline order.
// Timers armed by a firing callback are also fired if they fall within the window.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.CurrentTime.Add(d)
	for {
		t := c.nextDueLocked(target)
		if t == nil {
			break
		}
		t.fired = true
		c.CurrentTime = t.deadline
		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}
	c.CurrentTime = target
	c.mu.Unlock()
}

// Set sets the clock to the given time without firing timers
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentTime = t
}

// PendingTimers returns the number of timers that have neither fired nor been stopped
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextDeadline returns the earliest pending deadline, or false if nothing is pending
func (c *MockClock) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	c.sortLocked()
	return c.timers[0].deadline, true
}

func (c *MockClock) nextDueLocked(target time.Time) *mockTimer {
	if len(c.timers) == 0 {
		return nil
	}
	c.sortLocked()
	t := c.timers[0]
	if t.deadline.After(target) {
		return nil
	}
	c.timers = c.timers[1:]
	return t
}

func (c *MockClock) sortLocked() {
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
}

// Stop removes the timer from the pending set
func (t *mockTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	return true
}
