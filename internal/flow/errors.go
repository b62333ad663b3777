package flow

import "errors"

var (
	// ErrUnknownFlow is returned for a flow ID that is not open.
	ErrUnknownFlow = errors.New("flow: unknown flow")

	// ErrUnknownHandler is returned when no profile exists for the domain.
	ErrUnknownHandler = errors.New("flow: unknown handler")

	// ErrInvalidSource is returned for a source other than bluetooth or user.
	ErrInvalidSource = errors.New("flow: invalid source")

	// ErrInvalidInput is returned when a step is called with unusable input.
	ErrInvalidInput = errors.New("flow: invalid input")
)
