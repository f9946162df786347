package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the proof of payment issued for a confirmed booking.
type Receipt struct {
	Number         string
	BookingID      string
	PassengerName  string
	PassengerPhone string
	DepartureCity  string
	ArrivalCity    string
	DepartureTime  time.Time
	VehicleNumber  string
	NumberOfSeats  int
	UnitPrice      decimal.Decimal
	TotalPrice     decimal.Decimal
	PaymentMethod  PaymentMethod
	TransactionID  string
	PaidAt         time.Time
	IssuedAt       time.Time
}
