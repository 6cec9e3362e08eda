package mapping

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is matched by every ConfigurationError via errors.Is.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigurationError describes one malformed part of a snapshot.
type ConfigurationError struct {
	// KeyMapID is the UID of the offending key map or the gesture of the
	// offending fingerprint map.
	KeyMapID string

	// Field is the path of the offending field, e.g. "trigger.keys[1].device".
	Field string

	// Reason describes what is wrong.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("key map %s: %s", e.KeyMapID, e.Reason)
	}
	return fmt.Sprintf("key map %s: %s: %s", e.KeyMapID, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfiguration) true.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func configErr(id, field, format string, args ...any) error {
	return &ConfigurationError{
		KeyMapID: id,
		Field:    field,
		Reason:   fmt.Sprintf(format, args...),
	}
}
