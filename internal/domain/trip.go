package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripStatus represents the current status of a scheduled trip.
type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCancelled TripStatus = "cancelled"
	TripStatusCompleted TripStatus = "completed"
)

// Trip represents a scheduled minibus run with a fixed seat capacity.
// AvailableSeats stays within [0, TotalSeats].
type Trip struct {
	ID             string
	DepartureCity  string
	ArrivalCity    string
	DepartureTime  time.Time
	ArrivalTime    time.Time
	Price          decimal.Decimal
	TotalSeats     int
	AvailableSeats int
	Status         TripStatus
	DriverName     string
	DriverPhone    string
	VehicleNumber  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsBookable reports whether seats can still be reserved on the trip.
func (t *Trip) IsBookable() bool {
	return t.Status == TripStatusActive
}

// ReserveSeats takes n seats out of the available pool.
func (t *Trip) ReserveSeats(n int) error {
	if n <= 0 {
		return ErrInvalidSeatCount
	}
	if n > t.AvailableSeats {
		return ErrCapacityExceeded
	}
	t.AvailableSeats -= n
	return nil
}

// ReleaseSeats returns n seats to the available pool, never going past TotalSeats.
func (t *Trip) ReleaseSeats(n int) error {
	if n <= 0 {
		return ErrInvalidSeatCount
	}
	t.AvailableSeats += n
	if t.AvailableSeats > t.TotalSeats {
		t.AvailableSeats = t.TotalSeats
	}
	return nil
}

// PriceFor returns the price of n seats on the trip.
func (t *Trip) PriceFor(n int) decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(int64(n)))
}
