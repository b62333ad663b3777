package bluetooth

import "errors"

var (
	// ErrInvalidAddress is returned when an advertisement carries no usable address.
	ErrInvalidAddress = errors.New("bluetooth: invalid address")

	// ErrInvalidPayload is returned when an advertisement payload cannot be decoded.
	ErrInvalidPayload = errors.New("bluetooth: invalid payload")
)
