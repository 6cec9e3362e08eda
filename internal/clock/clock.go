// Package clock abstracts time for the trigger detection engine.
//
// Detection logic never calls time.Now or time.AfterFunc directly. It asks a
// Clock, which lets tests drive long-press and double-press windows with a
// manual clock and lets the controller route timer callbacks back onto its
// serial loop.
package clock

import (
	"errors"
	"time"
)

// ErrStopped is returned by AfterFunc when the clock can no longer schedule
// callbacks (for example because the loop it posts onto has shut down).
var ErrStopped = errors.New("clock: scheduling stopped")

// Clock supplies monotonic time and cancellable deferred callbacks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run once d has elapsed.
	// The returned Timer cancels the callback if it has not started yet.
	AfterFunc(d time.Duration, f func()) (Timer, error)
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running.
	// Returns false if the callback already ran or was already stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) (Timer, error) {
	return time.AfterFunc(d, f), nil
}

// Poster hands a task to a serial execution context.
type Poster interface {
	Post(task func()) error
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(task func()) error

// Post calls f(task).
func (f PosterFunc) Post(task func()) error {
	return f(task)
}

// OnLoop returns a Clock whose callbacks are posted onto p instead of running
// on the timer goroutine. Time itself comes from c. If a callback cannot be
// posted it is dropped and dropped, when not nil, receives the error.
func OnLoop(c Clock, p Poster, dropped func(error)) Clock {
	return &loopClock{base: c, poster: p, dropped: dropped}
}

type loopClock struct {
	base    Clock
	poster  Poster
	dropped func(error)
}

func (l *loopClock) Now() time.Time {
	return l.base.Now()
}

func (l *loopClock) AfterFunc(d time.Duration, f func()) (Timer, error) {
	return l.base.AfterFunc(d, func() {
		if err := l.poster.Post(f); err != nil && l.dropped != nil {
			l.dropped(err)
		}
	})
}
