package flowplan

import "errors"

var (
	// ErrInvalidSnapshot is returned when a plan snapshot cannot be
	// decoded or carries an unsupported version
	ErrInvalidSnapshot = errors.New("invalid plan snapshot")

	// ErrUnknownFlow is returned when no flow definition is registered
	// under the requested slug
	ErrUnknownFlow = errors.New("flow not found")
)
