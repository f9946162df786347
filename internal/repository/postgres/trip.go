package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

const tripColumns = `id, departure_city, arrival_city, departure_time, arrival_time, price,
		total_seats, available_seats, status, driver_name, driver_phone, vehicle_number,
		created_at, updated_at`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	return scanTrip(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a trip and holds a row lock on it.
func (r *TripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`
	return scanTrip(r.q.QueryRowContext(ctx, query, id))
}

// UpdateAvailableSeats stores a new available seat count.
// A count outside [0, total_seats] matches no row.
func (r *TripRepository) UpdateAvailableSeats(ctx context.Context, id string, availableSeats int) error {
	query := `
		UPDATE trips SET available_seats = $1, updated_at = NOW()
		WHERE id = $2 AND $1 >= 0 AND $1 <= total_seats
	`

	result, err := r.q.ExecContext(ctx, query, availableSeats, id)
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

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var arrivalTime sql.NullTime
	var driverName, driverPhone, vehicleNumber sql.NullString

	err := row.Scan(
		&trip.ID,
		&trip.DepartureCity,
		&trip.ArrivalCity,
		&trip.DepartureTime,
		&arrivalTime,
		&trip.Price,
		&trip.TotalSeats,
		&trip.AvailableSeats,
		&trip.Status,
		&driverName,
		&driverPhone,
		&vehicleNumber,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if arrivalTime.Valid {
		trip.ArrivalTime = arrivalTime.Time
	}
	trip.DriverName = driverName.String
	trip.DriverPhone = driverPhone.String
	trip.VehicleNumber = vehicleNumber.String

	return &trip, nil
}
