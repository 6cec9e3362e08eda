package detect

import "errors"

var (
	// ErrTimerScheduling is returned when a classification timer cannot be
	// armed. Only the affected matcher is reset.
	ErrTimerScheduling = errors.New("timer scheduling failed")

	// ErrConstraintsNotMet is reported when a firing is blocked by its
	// constraints.
	ErrConstraintsNotMet = errors.New("constraints not met")
)
