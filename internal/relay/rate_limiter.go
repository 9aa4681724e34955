package relay

import (
	"sync"
	"time"

	"github.com/dkeye/DriveChat/internal/clock"
)

// RateLimiter is a per-session sliding window over chat frames.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	history  map[SessionID][]time.Time
	limit    int
	interval time.Duration
}

// NewRateLimiter allows limit frames per interval. A limit of zero
// disables limiting.
func NewRateLimiter(c clock.Clock, limit int, interval time.Duration) *RateLimiter {
	if c == nil {
		c = clock.Real()
	}
	return &RateLimiter{
		clock:    c,
		history:  make(map[SessionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(sid SessionID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}
	rl.history[sid] = append(fresh, now)
	return true
}

func (rl *RateLimiter) Forget(sid SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, sid)
}
