package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a rider's reservation of seats on a trip.
// TotalPrice is frozen when the booking is created.
type Booking struct {
	ID             string
	UserID         string
	TripID         string
	NumberOfSeats  int
	TotalPrice     decimal.Decimal
	Status         BookingStatus
	PassengerName  string
	PassengerPhone string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOwnedBy reports whether the booking belongs to the given user.
func (b *Booking) IsOwnedBy(userID string) bool {
	return userID != "" && b.UserID == userID
}
