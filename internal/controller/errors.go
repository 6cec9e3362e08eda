package controller

import "errors"

var (
	// ErrAlreadyRecording is returned by StartRecording while recording.
	ErrAlreadyRecording = errors.New("already recording a trigger")

	// ErrPaused is returned when a mapping is requested while paused.
	ErrPaused = errors.New("key maps are paused")

	// ErrKeyMapNotFound is returned for an unknown key map UID.
	ErrKeyMapNotFound = errors.New("key map not found")

	// ErrNotTriggerable is returned when a key map may not be run from
	// another app, is disabled or has no actions.
	ErrNotTriggerable = errors.New("key map cannot be triggered from other apps")

	// ErrNoFingerprintMap is returned when no enabled map exists for a gesture.
	ErrNoFingerprintMap = errors.New("no fingerprint map for gesture")

	// ErrConstraintsNotMet is returned when a mapping's constraints block it.
	ErrConstraintsNotMet = errors.New("constraints not met")
)
