package service

import (
	"errors"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

var (
	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidDate is returned when a search date is not formatted as YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

	// ErrInvalidUserID is returned when no authenticated user is supplied.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidSeatCount is returned when the number of seats is not positive.
	ErrInvalidSeatCount = domain.ErrInvalidSeatCount

	// ErrMissingPassengerName is returned when the passenger name is empty.
	ErrMissingPassengerName = errors.New("passenger name is required")

	// ErrMissingPassengerPhone is returned when the passenger phone is empty.
	ErrMissingPassengerPhone = errors.New("passenger phone is required")

	// ErrMissingTransactionID is returned when a webhook carries no transaction id.
	ErrMissingTransactionID = errors.New("transaction id is required")

	// ErrInvalidPaymentMethod is returned when payment method is not supported.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrForbidden is returned when the requester does not own the booking.
	ErrForbidden = errors.New("booking belongs to another user")

	// ErrTripUnavailable is returned when the trip is not open for booking.
	ErrTripUnavailable = errors.New("trip is not available for booking")

	// ErrCapacityExceeded is returned when more seats are requested than remain.
	ErrCapacityExceeded = domain.ErrCapacityExceeded

	// ErrAlreadyCancelled is returned when cancelling a cancelled booking.
	ErrAlreadyCancelled = errors.New("booking already cancelled")

	// ErrInvalidState is returned when the booking is in the wrong stage for the operation.
	ErrInvalidState = errors.New("booking is not in a valid state for this operation")

	// ErrAlreadyPaid is returned when the booking's payment has completed.
	ErrAlreadyPaid = errors.New("booking already paid")

	// ErrPaymentInProgress is returned when another initiation holds the booking's payment lock.
	ErrPaymentInProgress = errors.New("payment initiation already in progress")
)
