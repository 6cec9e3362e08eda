package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a setting has an unusable value.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownFormat indicates a key map file with an unsupported extension.
	ErrUnknownFormat = errors.New("unknown key map file format")

	// ErrWatcherClosed is returned when using a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")
)

// LoadError reports a file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...))
}
