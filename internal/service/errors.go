package service

import "errors"

// Service-level sentinel errors.  Handlers translate these (and the
// repository sentinels they wrap or pass through) into HTTP codes.
var (
	// ErrValidation marks a request the engine refused before touching
	// any shared state: bad dates, empty seat lists, inactive goods,
	// zone quota mismatches.
	ErrValidation = errors.New("validation failed")

	// ErrSeatLocked is returned when another holder owns a lock on one
	// of the requested seats.
	ErrSeatLocked = errors.New("seat already locked")
)
