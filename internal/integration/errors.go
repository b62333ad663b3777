package integration

import "errors"

var (
	// ErrUnknownDomain is returned when no profile is registered for a domain.
	ErrUnknownDomain = errors.New("integration: unknown domain")

	// ErrInvalidProfile is returned when a profile definition cannot be used.
	ErrInvalidProfile = errors.New("integration: invalid profile")
)
