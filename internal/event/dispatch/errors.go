package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running loop.
	ErrAlreadyRunning = errors.New("loop is already running")

	// ErrNotRunning is returned when tasks are posted to a stopped loop.
	ErrNotRunning = errors.New("loop is not running")

	// ErrQueueFull is returned when the loop queue cannot accept more tasks.
	ErrQueueFull = errors.New("task queue is full")
)
