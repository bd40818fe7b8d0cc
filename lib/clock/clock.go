// Package clock abstracts wall-clock reads and one-shot timers so the reminder
// scheduler and the activity log can be driven deterministically in tests.
package clock

import "time"

// Clock provides the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot timer.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Real is the system clock.
type Real struct{}

// New returns the system clock.
func New() Clock {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
