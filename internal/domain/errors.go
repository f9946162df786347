package domain

import "errors"

var (
	// ErrInvalidSeatCount is returned when a seat count is zero or negative.
	ErrInvalidSeatCount = errors.New("number of seats must be positive")

	// ErrCapacityExceeded is returned when more seats are requested than are available.
	ErrCapacityExceeded = errors.New("not enough seats available")
)
