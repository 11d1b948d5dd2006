package tour

import "errors"

var (
	// ErrNotActive is returned by operations that need an active tour.
	ErrNotActive = errors.New("tour: not active")
	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("tour: session destroyed")
	// ErrUnknownAction is returned by Dispatch for an unknown button action.
	ErrUnknownAction = errors.New("tour: unknown action")
)
