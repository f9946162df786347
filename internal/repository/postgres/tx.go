package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

// Transactor runs units of work inside a PostgreSQL transaction.
type Transactor struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewTransactor creates a Transactor using READ COMMITTED isolation. Seat and
// payment rows are serialized with explicit row locks.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{
		db:   db,
		opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

// Repositories returns repositories bound to the connection pool, outside any transaction.
func Repositories(db *sql.DB) repository.Repositories {
	return repository.Repositories{
		Trips:    NewTripRepository(db),
		Bookings: NewBookingRepository(db),
		Payments: NewPaymentRepository(db),
	}
}

// WithinTx begins a transaction, hands fn repositories bound to it and commits
// when fn succeeds. Once begun, the transaction is not interrupted by ctx
// cancellation: it always runs to commit or rollback.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	ctx = context.WithoutCancel(ctx)

	tx, err := t.db.BeginTx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repos := repository.Repositories{
		Trips:    NewTripRepositoryWithTx(tx),
		Bookings: NewBookingRepositoryWithTx(tx),
		Payments: NewPaymentRepositoryWithTx(tx),
	}

	if err = fn(ctx, repos); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
