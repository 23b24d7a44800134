package flowexec

import "errors"

var (
	// ErrNoActiveFlow is returned when a response arrives for a session
	// with no parked plan
	ErrNoActiveFlow = errors.New("no active flow in session")

	// ErrUnknownStage is returned when a plan references a stage name
	// that is not registered
	ErrUnknownStage = errors.New("unknown stage")

	// ErrPendingUserMissing is returned when a stage requires a pending
	// user and the plan context has none
	ErrPendingUserMissing = errors.New("no pending user in plan context")
)
