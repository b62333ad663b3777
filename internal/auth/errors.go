package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrNotConfigured is returned when no admin password hash is set.
	ErrNotConfigured = errors.New("auth: admin account not configured")

	// ErrTokenInvalid is returned for a token that fails validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidHash is returned for a stored hash that is not argon2id PHC.
	ErrInvalidHash = errors.New("auth: invalid password hash")
)
