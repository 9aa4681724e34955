// Package clock abstracts the timers the client uses so countdown
// behavior can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the client needs.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a pending AfterFunc call.
type Timer interface {
	// Stop reports whether the call was prevented.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
