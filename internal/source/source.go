package source

import (
	"context"
	"errors"

	"github.com/dshills/keymapper/internal/detect"
)

var (
	// ErrUnsupported is returned by sources not available on this platform.
	ErrUnsupported = errors.New("input source not supported on this platform")

	// ErrNoDevices is returned when no usable input device was found.
	ErrNoDevices = errors.New("no input devices found")

	// ErrQuit is returned by a source the user asked to stop.
	ErrQuit = errors.New("quit requested")
)

// Sink receives key events and reports whether each one was consumed.
type Sink interface {
	OnKeyEvent(ev detect.KeyEvent) bool
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev detect.KeyEvent) bool

// OnKeyEvent calls f(ev).
func (f SinkFunc) OnKeyEvent(ev detect.KeyEvent) bool {
	return f(ev)
}

// Source produces key events until its context is cancelled or it fails.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}
