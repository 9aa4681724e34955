package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(2 * time.Second)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, epoch.Add(3*time.Second), c.Now())
}

func TestFakeStopPreventsCallback(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeCallbackMayReschedule(t *testing.T) {
	c := Fake(epoch)
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 5 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(10 * time.Second)
	assert.Equal(t, 5, ticks)
	assert.Equal(t, 0, c.Pending())
}
