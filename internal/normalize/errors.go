package normalize

import "errors"

var (
	// ErrBadTiter is returned when a titer cell is neither a recognized
	// sentinel nor parseable as a non-negative number.
	ErrBadTiter = errors.New("unrecognized titer value")

	// ErrBadAge is returned when an age cell cannot be parsed as an integer.
	ErrBadAge = errors.New("invalid age")
)
