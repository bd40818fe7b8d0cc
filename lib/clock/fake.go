package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock for tests.
//
// Timers fire synchronously inside Advance, in due-time order, with Now() reporting
// each timer's due time while its callback runs. Timers armed by a callback are
// honoured within the same Advance call if they fall due before its target.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks run without the
// internal lock held, so they may arm or stop timers.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	when  time.Time
	seq   int64
	f     func()
	done  bool
}

// NewFake creates a fake clock reading start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d < 0 {
		d = 0
	}
	c.seq++
	t := &fakeTimer{clock: c, when: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		c.removeLocked(next)
		c.now = next.when
		c.mu.Unlock()

		next.f()
	}
}

// Set moves the clock to t, firing due timers. Moving backwards only changes Now().
func (c *Fake) Set(t time.Time) {
	now := c.Now()
	if t.Before(now) {
		c.mu.Lock()
		c.now = t
		c.mu.Unlock()
		return
	}
	c.Advance(t.Sub(now))
}

// Pending returns the number of armed timers.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextDue returns the due time of the earliest armed timer.
func (c *Fake) NextDue() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	c.sortLocked()
	return c.timers[0].when, true
}

func (c *Fake) nextDueLocked(target time.Time) *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	c.sortLocked()
	if c.timers[0].when.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *Fake) sortLocked() {
	sort.Slice(c.timers, func(i, j int) bool {
		if c.timers[i].when.Equal(c.timers[j].when) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].when.Before(c.timers[j].when)
	})
}

func (c *Fake) removeLocked(t *fakeTimer) {
	for i, candidate := range c.timers {
		if candidate == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.removeLocked(t)
	return true
}
