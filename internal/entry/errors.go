package entry

import "errors"

// Domain errors for the entry package.
//
//	if errors.Is(err, entry.ErrEntryNotFound) {
//	    // handle not found case
//	}
var (
	// ErrEntryNotFound is returned when an entry ID or (domain, unique_id) does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrEntryExists is returned when an entry for (domain, unique_id) already exists.
	ErrEntryExists = errors.New("entry: already exists")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("entry: invalid")
)
