package cull

import "errors"

var (
	// ErrInvalidHandle rejects the zero handle or a nil provider at the API boundary.
	ErrInvalidHandle = errors.New("cull: invalid handle")
	// ErrAlreadyRegistered is returned by Registry.Insert for a known handle.
	ErrAlreadyRegistered = errors.New("cull: handle already registered")
	// ErrNotRegistered is returned when removing a handle the registry does not hold.
	ErrNotRegistered = errors.New("cull: handle not registered")
	// ErrCapacityExceeded means the registry could not grow. The subsystem cannot
	// continue without dropping entities, so callers must treat it as fatal.
	ErrCapacityExceeded = errors.New("cull: registry capacity exceeded")
)
