// Package repository defines sentinel errors shared by the data
// access layer. Higher layers match on these with errors.Is to pick
// the right failure response without parsing SQL errors themselves.
package repository

import "errors"

// ErrNotFound is returned when a requested catalog row (goods, seat,
// booking) does not exist. Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrSessionNotFound is returned when no active session template
// matches the requested type. Kept distinct from ErrNotFound because
// the API reports it under its own error code.
var ErrSessionNotFound = errors.New("session not found")

// ErrInsufficient is returned when a check-and-consume would drive a
// daily inventory counter negative. The wrapping error names the
// short resource.
var ErrInsufficient = errors.New("inventory insufficient")

// ErrVersionConflict is returned when a conditional inventory update
// matched zero rows because another transaction modified the row
// between read and write. Callers may retry once with fresh state or
// fail with a conflict response.
var ErrVersionConflict = errors.New("inventory version conflict")

// ErrSeatTaken is returned by the booking persistence check when a
// non-cancelled booking already holds one of the requested seats for
// the same session and date.
var ErrSeatTaken = errors.New("seat already booked")

// ErrForbidden is returned when the caller attempts an operation on
// a booking owned by someone else. Handlers translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")
