//go:build !linux

package source

import (
	"context"

	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
)

// EvdevConfig configures the evdev source.
type EvdevConfig struct {
	Paths []string
	Grab  bool
}

// Evdev is only available on Linux.
type Evdev struct{}

// NewEvdev returns ErrUnsupported.
func NewEvdev(EvdevConfig, *logging.Logger) (*Evdev, error) {
	return nil, ErrUnsupported
}

// Name returns "evdev".
func (s *Evdev) Name() string {
	return "evdev"
}

// Run returns ErrUnsupported.
func (s *Evdev) Run(context.Context, Sink) error {
	return ErrUnsupported
}

// ImitateKeyPress does nothing.
func (s *Evdev) ImitateKeyPress(detect.KeyEvent) {}
