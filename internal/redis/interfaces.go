package redis

import (
	"context"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// TripCache defines the interface for trip caching.
type TripCache interface {
	GetTrip(ctx context.Context, tripID string) (*domain.Trip, error)
	TripGeneration(ctx context.Context, tripID string) (int64, error)
	SetTrip(ctx context.Context, trip *domain.Trip, generation int64) error
	InvalidateTrip(ctx context.Context, tripID string) error
}

// PaymentLocker defines the interface for per-booking payment locks.
type PaymentLocker interface {
	AcquirePaymentLock(ctx context.Context, bookingID string) (release func(), err error)
}

// Ensure concrete types implement interfaces.
var (
	_ TripCache     = (*CacheStore)(nil)
	_ PaymentLocker = (*LockStore)(nil)
)
