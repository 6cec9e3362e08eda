package action

import "errors"

var (
	// ErrUnknownType is returned when no handler is registered for an action type.
	ErrUnknownType = errors.New("unknown action type")

	// ErrHandlerExists is returned when registering a second handler for a type.
	ErrHandlerExists = errors.New("handler already registered")

	// ErrMissingData is returned when an action lacks required data.
	ErrMissingData = errors.New("action data is required")

	// ErrStateClosed is returned when using a closed Lua state.
	ErrStateClosed = errors.New("lua state is closed")
)
