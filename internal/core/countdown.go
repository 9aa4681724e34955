package core

import (
	"sync"
	"time"

	"github.com/dkeye/DriveChat/internal/clock"
)

// Countdown calls onTick every step until total has elapsed, then
// calls onExpire exactly once. Cancel stops it at any point; after
// Cancel returns no callback starts.
//
// Callbacks run on the clock's goroutine, never under the lock.
type Countdown struct {
	mu       sync.Mutex
	clock    clock.Clock
	deadline time.Time
	step     time.Duration
	timer    clock.Timer
	stopped  bool

	onTick   func(remaining time.Duration)
	onExpire func()
}

func StartCountdown(c clock.Clock, total, step time.Duration, onTick func(time.Duration), onExpire func()) *Countdown {
	if step <= 0 {
		step = time.Second
	}
	cd := &Countdown{
		clock:    c,
		deadline: c.Now().Add(total),
		step:     step,
		onTick:   onTick,
		onExpire: onExpire,
	}
	cd.mu.Lock()
	cd.scheduleLocked()
	cd.mu.Unlock()
	return cd
}

func (cd *Countdown) scheduleLocked() {
	next := cd.deadline.Sub(cd.clock.Now())
	if next > cd.step {
		next = cd.step
	}
	cd.timer = cd.clock.AfterFunc(next, cd.fire)
}

func (cd *Countdown) fire() {
	cd.mu.Lock()
	if cd.stopped {
		cd.mu.Unlock()
		return
	}
	remaining := cd.deadline.Sub(cd.clock.Now())
	if remaining <= 0 {
		cd.stopped = true
		cd.mu.Unlock()
		if cd.onExpire != nil {
			cd.onExpire()
		}
		return
	}
	cd.scheduleLocked()
	cd.mu.Unlock()
	if cd.onTick != nil {
		cd.onTick(remaining)
	}
}

// Cancel is safe to call more than once and after expiry.
func (cd *Countdown) Cancel() {
	if cd == nil {
		return
	}
	cd.mu.Lock()
	defer cd.mu.Unlock()
	cd.stopped = true
	if cd.timer != nil {
		cd.timer.Stop()
	}
}

// Remaining is zero once the countdown expired or was cancelled.
func (cd *Countdown) Remaining() time.Duration {
	if cd == nil {
		return 0
	}
	cd.mu.Lock()
	defer cd.mu.Unlock()
	if cd.stopped {
		return 0
	}
	if r := cd.deadline.Sub(cd.clock.Now()); r > 0 {
		return r
	}
	return 0
}

// Stopped is true for a nil countdown.
func (cd *Countdown) Stopped() bool {
	if cd == nil {
		return true
	}
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.stopped
}
