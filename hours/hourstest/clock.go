// Package hourstest provides a hand-driven hours.Clock for tests.
package hourstest

import (
	"sync"
	"time"

	"github.com/icodeforyou/energiprice-go/hours"
)

type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*Timer
}

type Timer struct {
	mu      sync.Mutex
	Delay   time.Duration
	At      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) AfterFunc(d time.Duration, f func()) hours.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &Timer{Delay: d, At: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Timers returns every timer ever armed, in arming order.
func (c *Clock) Timers() []*Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Timer(nil), c.timers...)
}

// Pending returns the timers that are neither stopped nor fired.
func (c *Clock) Pending() []*Timer {
	var pending []*Timer
	for _, t := range c.Timers() {
		if t.Pending() {
			pending = append(pending, t)
		}
	}
	return pending
}

func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire runs the callback synchronously unless the timer was stopped or already fired.
func (t *Timer) Fire() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.mu.Unlock()
	t.fn()
	return true
}
