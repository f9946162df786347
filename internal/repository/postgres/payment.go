package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

const paymentColumns = `id, booking_id, amount, payment_method, transaction_id, status,
		raw_response, attempts, created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, amount, payment_method, transaction_id, status,
			raw_response, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.Amount,
		payment.Method,
		nullString(payment.TransactionID),
		payment.Status,
		rawJSON(payment.RawResponse),
		payment.Attempts,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

// Update stores the mutable fields of a payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET amount = $1, payment_method = $2, transaction_id = $3, status = $4,
			raw_response = $5, attempts = $6, updated_at = $7
		WHERE id = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		payment.Amount,
		payment.Method,
		nullString(payment.TransactionID),
		payment.Status,
		rawJSON(payment.RawResponse),
		payment.Attempts,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetByBookingID retrieves the payment attached to a booking.
func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, bookingID))
}

// GetByBookingIDForUpdate retrieves the payment attached to a booking and holds a row lock on it.
func (r *PaymentRepository) GetByBookingIDForUpdate(ctx context.Context, bookingID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 FOR UPDATE`
	return scanPayment(r.q.QueryRowContext(ctx, query, bookingID))
}

// GetByTransactionID retrieves a payment by its provider transaction id.
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, transactionID))
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var transactionID sql.NullString
	var raw []byte

	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.Method,
		&transactionID,
		&payment.Status,
		&raw,
		&payment.Attempts,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	payment.TransactionID = transactionID.String
	payment.RawResponse = raw

	return &payment, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rawJSON keeps empty provider payloads as SQL NULL in the jsonb column.
func rawJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
