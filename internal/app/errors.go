package app

import (
	"errors"
	"fmt"

	"github.com/dshills/keymapper/internal/source"
)

// Application errors.
var (
	// ErrQuit signals that the user asked the application to exit.
	ErrQuit = source.ErrQuit

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates an operation that needs Run.
	ErrNotRunning = errors.New("application not running")

	// ErrRecordingCancelled indicates a recording ended by cancellation
	// before any key was pressed.
	ErrRecordingCancelled = errors.New("recording cancelled")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// OperationError represents an error that occurred during a specific operation.
type OperationError struct {
	Op     string // Operation name (e.g., "reload", "record")
	Target string // Target of the operation (e.g., file path)
	Err    error
}

func (e *OperationError) Error() string {
	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
