// Package streak derives a user's daily engagement streak from the timestamp of
// their previous activity.
package streak

import (
	"time"

	"github.com/jghoshh/wellspring/models"
)

const day = 24 * time.Hour

// Apply computes the streak after an activity performed at now.
//
// It accepts three arguments:
// - current: The streak stored before this activity.
// - last: The previous activity timestamp. The zero time means no activity was ever recorded.
// - now: The wall-clock time of this activity.
//
// Comparison happens on calendar dates in now's location, so time of day never matters.
// A first-ever activity yields 0; the same date keeps the streak; the following date adds one;
// any other gap, including a last activity in the future, restarts the streak at 1.
// The returned timestamp is always now.
func Apply(current int, last time.Time, now time.Time) (int, time.Time) {
	if current < 0 {
		current = 0
	}

	if last.IsZero() {
		return 0, now
	}

	switch DaysBetween(last, now) {
	case 0:
		return current, now
	case 1:
		return current + 1, now
	default:
		return 1, now
	}
}

// DaysBetween returns the number of calendar dates from a to b, evaluated in b's location.
// It is negative when a falls on a later date than b.
func DaysBetween(a, b time.Time) int {
	loc := b.Location()
	from := dateOf(a.In(loc))
	to := dateOf(b)
	return int(to.Sub(from) / day)
}

// Record runs the engine against u in place.
func Record(u *models.User, now time.Time) {
	next, at := Apply(u.Streak, u.LastActivity.Time, now)
	u.Streak = next
	u.LastActivity = models.NewActivityTime(at)
}

// dateOf maps t's calendar date onto UTC midnight, where every day is exactly 24 hours long.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
