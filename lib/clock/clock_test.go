package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresInDueOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	var firedAt []time.Time
	c.AfterFunc(2*time.Hour, func() { fired = append(fired, "b"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(time.Hour, func() { fired = append(fired, "a"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(5*time.Hour, func() { fired = append(fired, "c") })

	c.Advance(3 * time.Hour)

	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, []time.Time{start.Add(time.Hour), start.Add(2 * time.Hour)}, firedAt)
	assert.Equal(t, start.Add(3*time.Hour), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestFakeStopPreventsFiring(t *testing.T) {
	c := NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	called := false
	timer := c.AfterFunc(time.Minute, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Hour)
	assert.False(t, called)
	assert.Zero(t, c.Pending())
}

func TestFakeRearmingCallbackFiresWithinAdvance(t *testing.T) {
	c := NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		c.AfterFunc(10*time.Minute, tick)
	}
	c.AfterFunc(10*time.Minute, tick)

	c.Advance(35 * time.Minute)

	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, c.Pending())

	due, ok := c.NextDue()
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 40, 0, 0, time.UTC), due)
}

func TestFakeStoppedTimerDoesNotFireAfterFiring(t *testing.T) {
	c := NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)

	assert.False(t, timer.Stop())
}
