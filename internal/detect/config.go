package detect

import (
	"fmt"
	"time"
)

// Config holds the timing constants used for click-type classification.
type Config struct {
	// LongPressDelay is the hold time at which a press becomes a long press.
	// Default: 500ms
	LongPressDelay time.Duration

	// DoublePressDelay bounds every press and gap of a double press.
	// Default: 300ms
	DoublePressDelay time.Duration

	// SequenceTriggerTimeout is how long a sequence waits for its next key
	// after the previous key was classified.
	// Default: 1000ms
	SequenceTriggerTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LongPressDelay:         500 * time.Millisecond,
		DoublePressDelay:       300 * time.Millisecond,
		SequenceTriggerTimeout: 1000 * time.Millisecond,
	}
}

// Validate rejects non-positive timings.
func (c Config) Validate() error {
	if c.LongPressDelay <= 0 {
		return fmt.Errorf("long press delay must be positive, got %v", c.LongPressDelay)
	}
	if c.DoublePressDelay <= 0 {
		return fmt.Errorf("double press delay must be positive, got %v", c.DoublePressDelay)
	}
	if c.SequenceTriggerTimeout <= 0 {
		return fmt.Errorf("sequence trigger timeout must be positive, got %v", c.SequenceTriggerTimeout)
	}
	return nil
}
