package clock

import (
	"time"
)

// Scheduler runs continuations after a delay and reports the current time.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func())
}

// Real is a Scheduler backed by the runtime timers.
type Real struct{}

// NewReal returns the wall-clock scheduler.
func NewReal() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

// AfterFunc runs fn on its own goroutine once d has elapsed.
func (Real) AfterFunc(d time.Duration, fn func()) {
	if fn == nil {
		return
	}
	time.AfterFunc(d, fn)
}
