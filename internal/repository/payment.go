package repository

import (
	"context"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// Update stores every mutable field of an existing payment.
	Update(ctx context.Context, payment *domain.Payment) error

	// GetByBookingID retrieves the payment attached to a booking.
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)

	// GetByBookingIDForUpdate retrieves the payment attached to a booking and locks its row.
	GetByBookingIDForUpdate(ctx context.Context, bookingID string) (*domain.Payment, error)

	// GetByTransactionID retrieves a payment by its provider transaction id.
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
}
