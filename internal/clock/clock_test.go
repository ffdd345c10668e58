package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	c.AfterFunc(time.Second, func() { order = append(order, "early") })
	assert.Equal(t, 2, c.Pending())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"early"}, order)
	assert.Equal(t, start.Add(1500*time.Millisecond), c.Now())

	c.Advance(time.Second)
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Zero(t, c.Pending())
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeCallbackSeesDeadline(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewFake(start)
	var seen time.Time
	c.AfterFunc(3*time.Second, func() { seen = c.Now() })

	c.Advance(10 * time.Second)
	assert.Equal(t, start.Add(3*time.Second), seen)
}

func TestFakeTimerScheduledFromCallback(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	count := 0
	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})

	c.Advance(5 * time.Second)
	assert.Equal(t, 2, count)
}

func TestFakeForgetsSettledTimers(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	for i := 0; i < 50; i++ {
		c.AfterFunc(time.Second, func() {})
	}
	stopped := c.AfterFunc(time.Hour, func() {})
	assert.Equal(t, 51, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, 1, c.Pending())
	assert.Len(t, c.timers, 1)

	assert.True(t, stopped.Stop())
	assert.Empty(t, c.timers)
}
