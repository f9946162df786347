package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

var (
	tripCols    = []string{"id", "departure_city", "arrival_city", "departure_time", "arrival_time", "price", "total_seats", "available_seats", "status", "driver_name", "driver_phone", "vehicle_number", "created_at", "updated_at"}
	bookingCols = []string{"id", "user_id", "trip_id", "number_of_seats", "total_price", "status", "passenger_name", "passenger_phone", "created_at", "updated_at"}
	paymentCols = []string{"id", "booking_id", "amount", "payment_method", "transaction_id", "status", "raw_response", "attempts", "created_at", "updated_at"}
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func tripRows(now time.Time, available int) *sqlmock.Rows {
	return sqlmock.NewRows(tripCols).AddRow(
		"trip-1", "Abidjan", "Yamoussoukro", now, nil, "1500.00", 10, available, "active",
		"Kone", "0700000000", nil, now, now,
	)
}

func TestTripRepository_GetByIDForUpdate(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).
		WithArgs("trip-1").
		WillReturnRows(tripRows(now, 5))

	trip, err := NewTripRepository(db).GetByIDForUpdate(context.Background(), "trip-1")
	require.NoError(t, err)

	assert.Equal(t, "trip-1", trip.ID)
	assert.Equal(t, 5, trip.AvailableSeats)
	assert.Equal(t, 10, trip.TotalSeats)
	assert.Equal(t, domain.TripStatusActive, trip.Status)
	assert.True(t, trip.Price.Equal(decimal.RequireFromString("1500")))
	assert.True(t, trip.ArrivalTime.IsZero())
	assert.Equal(t, "Kone", trip.DriverName)
	assert.Empty(t, trip.VehicleNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewTripRepository(db).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_UpdateAvailableSeats(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`UPDATE trips SET available_seats = \$1`).
		WithArgs(2, "trip-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE trips SET available_seats = \$1`).
		WithArgs(-1, "trip-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTripRepository(db)
	require.NoError(t, repo.UpdateAvailableSeats(context.Background(), "trip-1", 2))
	assert.ErrorIs(t, repo.UpdateAvailableSeats(context.Background(), "trip-1", -1), repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_CreateAndList(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	booking := &domain.Booking{
		ID:             "booking-1",
		UserID:         "user-1",
		TripID:         "trip-1",
		NumberOfSeats:  3,
		TotalPrice:     decimal.RequireFromString("4500"),
		Status:         domain.BookingStatusPending,
		PassengerName:  "Awa",
		PassengerPhone: "0701020304",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs("booking-1", "user-1", "trip-1", 3, decimal.RequireFromString("4500"), domain.BookingStatusPending, "Awa", "0701020304", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow("booking-2", "user-1", "trip-1", 1, "1500", "confirmed", "Awa", "0701020304", now, now).
			AddRow("booking-1", "user-1", "trip-1", 3, "4500", "pending", "Awa", "0701020304", now.Add(-time.Hour), now))

	repo := NewBookingRepository(db)
	require.NoError(t, repo.Create(context.Background(), booking))

	bookings, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "booking-2", bookings[0].ID)
	assert.Equal(t, domain.BookingStatusConfirmed, bookings[0].Status)
	assert.True(t, bookings[1].TotalPrice.Equal(decimal.NewFromInt(4500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_UpdateStatusNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`UPDATE bookings SET status = \$1`).
		WithArgs(domain.BookingStatusConfirmed, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewBookingRepository(db).UpdateStatus(context.Background(), "missing", domain.BookingStatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_CreateWithoutTransactionID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO payments`).
		WithArgs("pay-1", "booking-1", decimal.NewFromInt(4500), domain.PaymentMethodWave, nil, domain.PaymentStatusPending, nil, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPaymentRepository(db).Create(context.Background(), &domain.Payment{
		ID:        "pay-1",
		BookingID: "booking-1",
		Amount:    decimal.NewFromInt(4500),
		Method:    domain.PaymentMethodWave,
		Status:    domain.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetByTransactionID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE transaction_id = \$1`).
		WithArgs("wave-tx-1").
		WillReturnRows(sqlmock.NewRows(paymentCols).
			AddRow("pay-1", "booking-1", "4500", "wave", "wave-tx-1", "pending", `{"id":"wave-tx-1"}`, 1, now, now))

	payment, err := NewPaymentRepository(db).GetByTransactionID(context.Background(), "wave-tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodWave, payment.Method)
	assert.Equal(t, "wave-tx-1", payment.TransactionID)
	assert.Equal(t, 1, payment.Attempts)
	assert.JSONEq(t, `{"id":"wave-tx-1"}`, string(payment.RawResponse))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Update(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`UPDATE payments SET amount = \$1`).
		WithArgs(decimal.NewFromInt(4500), domain.PaymentMethodMTNMomo, "ref-2", domain.PaymentStatusPending, `{"status":"pending"}`, 2, sqlmock.AnyArg(), "pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPaymentRepository(db).Update(context.Background(), &domain.Payment{
		ID:            "pay-1",
		Amount:        decimal.NewFromInt(4500),
		Method:        domain.PaymentMethodMTNMomo,
		TransactionID: "ref-2",
		Status:        domain.PaymentStatusPending,
		RawResponse:   []byte(`{"status":"pending"}`),
		Attempts:      2,
		UpdatedAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).
		WithArgs("trip-1").
		WillReturnRows(tripRows(now, 5))
	mock.ExpectExec(`UPDATE trips SET available_seats = \$1`).
		WithArgs(2, "trip-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		trip, err := repos.Trips.GetByIDForUpdate(ctx, "trip-1")
		if err != nil {
			return err
		}
		if err := trip.ReserveSeats(3); err != nil {
			return err
		}
		if err := repos.Trips.UpdateAvailableSeats(ctx, trip.ID, trip.AvailableSeats); err != nil {
			return err
		}
		return repos.Bookings.Create(ctx, &domain.Booking{ID: "b1", TripID: trip.ID, NumberOfSeats: 3})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1 FOR UPDATE`).
		WithArgs("trip-1").
		WillReturnRows(tripRows(now, 5))
	mock.ExpectRollback()

	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		trip, err := repos.Trips.GetByIDForUpdate(ctx, "trip-1")
		if err != nil {
			return err
		}
		return trip.ReserveSeats(6)
	})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_IgnoresCancellationAfterBegin(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings SET status = \$1`).
		WithArgs(domain.BookingStatusCancelled, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithCancel(context.Background())
	err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		cancel()
		return repos.Bookings.UpdateStatus(ctx, "b1", domain.BookingStatusCancelled)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestTripCatalog_Search(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE status = \$1 AND departure_city ILIKE \$2 AND departure_time >= \$3 AND departure_time < \$4 ORDER BY departure_time ASC`).
		WithArgs(domain.TripStatusActive, "%abidjan%", day, day.AddDate(0, 0, 1)).
		WillReturnRows(tripRows(now, 7))

	trips, err := NewTripCatalog(db).Search(context.Background(), repository.TripFilter{
		DepartureCity: "abidjan",
		Date:          now,
	})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, 7, trips[0].AvailableSeats)
	assert.Equal(t, "Abidjan", trips[0].DepartureCity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripCatalog_SearchEscapesWildcards(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE status = \$1 AND arrival_city ILIKE \$2 ORDER BY departure_time ASC`).
		WithArgs(domain.TripStatusActive, `%San\_Pedro 100\%\\%`).
		WillReturnRows(sqlmock.NewRows(tripCols))

	trips, err := NewTripCatalog(db).Search(context.Background(), repository.TripFilter{
		ArrivalCity: `San_Pedro 100%\`,
	})
	require.NoError(t, err)
	assert.Empty(t, trips)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%Bouaké%", containsPattern("Bouaké"))
	assert.Equal(t, `%\%%`, containsPattern("%"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%\\%`, containsPattern(`\`))
}

func TestBookingRepository_GetByIDForUpdate(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs("booking-1").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow("booking-1", "user-1", "trip-1", 2, "3000", "pending", "Aya", "0701020304", now, now))

	booking, err := NewBookingRepository(db).GetByIDForUpdate(context.Background(), "booking-1")
	require.NoError(t, err)
	assert.Equal(t, "booking-1", booking.ID)
	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetByBookingIDForUpdate(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE booking_id = \$1 FOR UPDATE`).
		WithArgs("booking-1").
		WillReturnRows(sqlmock.NewRows(paymentCols).
			AddRow("pay-1", "booking-1", "3000", "wave", "wave-tx-1", "pending", nil, 1, now, now))

	payment, err := NewPaymentRepository(db).GetByBookingIDForUpdate(context.Background(), "booking-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetByBookingIDForUpdateNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE booking_id = \$1 FOR UPDATE`).
		WithArgs("booking-1").
		WillReturnError(sql.ErrNoRows)

	_, err := NewPaymentRepository(db).GetByBookingIDForUpdate(context.Background(), "booking-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
