package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/DriveChat/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCountdownTicksThenExpiresOnce(t *testing.T) {
	c := clock.Fake(epoch)
	var ticks []time.Duration
	expired := 0
	cd := StartCountdown(c, 3*time.Second, time.Second,
		func(r time.Duration) { ticks = append(ticks, r) },
		func() { expired++ })

	c.Advance(2 * time.Second)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, ticks)
	assert.Equal(t, time.Second, cd.Remaining())
	assert.Equal(t, 0, expired)

	c.Advance(time.Second)
	assert.Equal(t, 1, expired)
	assert.True(t, cd.Stopped())

	c.Advance(10 * time.Second)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, c.Pending())
}

func TestCountdownCancel(t *testing.T) {
	c := clock.Fake(epoch)
	expired := false
	cd := StartCountdown(c, 5*time.Second, time.Second, nil, func() { expired = true })

	c.Advance(2 * time.Second)
	cd.Cancel()
	cd.Cancel()
	c.Advance(time.Minute)

	assert.False(t, expired)
	assert.Zero(t, cd.Remaining())
}

func TestCountdownUnevenStep(t *testing.T) {
	c := clock.Fake(epoch)
	expiredAt := time.Time{}
	StartCountdown(c, 2500*time.Millisecond, time.Second, nil, func() { expiredAt = c.Now() })

	c.Advance(3 * time.Second)
	assert.Equal(t, epoch.Add(2500*time.Millisecond), expiredAt)
}

func TestNilCountdownIsSafe(t *testing.T) {
	var cd *Countdown
	cd.Cancel()
	assert.Zero(t, cd.Remaining())
	assert.True(t, cd.Stopped())
}
