package repository

import "context"

// Repositories groups the repositories that share one unit of work.
type Repositories struct {
	Trips    TripRepository
	Bookings BookingRepository
	Payments PaymentRepository
}

// Transactor runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back on any error or panic.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
