package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

// TripCatalog serves trip searches using sqlx struct scanning.
type TripCatalog struct {
	db *sqlx.DB
}

// NewTripCatalog wraps an open connection pool for catalog reads.
func NewTripCatalog(db *sql.DB) *TripCatalog {
	return &TripCatalog{db: sqlx.NewDb(db, "postgres")}
}

type tripRow struct {
	ID             string          `db:"id"`
	DepartureCity  string          `db:"departure_city"`
	ArrivalCity    string          `db:"arrival_city"`
	DepartureTime  time.Time       `db:"departure_time"`
	ArrivalTime    sql.NullTime    `db:"arrival_time"`
	Price          decimal.Decimal `db:"price"`
	TotalSeats     int             `db:"total_seats"`
	AvailableSeats int             `db:"available_seats"`
	Status         string          `db:"status"`
	DriverName     sql.NullString  `db:"driver_name"`
	DriverPhone    sql.NullString  `db:"driver_phone"`
	VehicleNumber  sql.NullString  `db:"vehicle_number"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r tripRow) toDomain() *domain.Trip {
	return &domain.Trip{
		ID:             r.ID,
		DepartureCity:  r.DepartureCity,
		ArrivalCity:    r.ArrivalCity,
		DepartureTime:  r.DepartureTime,
		ArrivalTime:    r.ArrivalTime.Time,
		Price:          r.Price,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		Status:         domain.TripStatus(r.Status),
		DriverName:     r.DriverName.String,
		DriverPhone:    r.DriverPhone.String,
		VehicleNumber:  r.VehicleNumber.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// Search returns active trips matching the filter ordered by departure time.
// City filters are case-insensitive substring matches; Date matches the departure day.
func (c *TripCatalog) Search(ctx context.Context, filter repository.TripFilter) ([]*domain.Trip, error) {
	conds := []string{"status = $1"}
	args := []any{domain.TripStatusActive}

	if filter.DepartureCity != "" {
		args = append(args, containsPattern(filter.DepartureCity))
		conds = append(conds, fmt.Sprintf("departure_city ILIKE $%d", len(args)))
	}
	if filter.ArrivalCity != "" {
		args = append(args, containsPattern(filter.ArrivalCity))
		conds = append(conds, fmt.Sprintf("arrival_city ILIKE $%d", len(args)))
	}
	if !filter.Date.IsZero() {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, filter.Date.Location())
		args = append(args, day, day.AddDate(0, 0, 1))
		conds = append(conds, fmt.Sprintf("departure_time >= $%d AND departure_time < $%d", len(args)-1, len(args)))
	}

	query := `SELECT ` + tripColumns + ` FROM trips WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY departure_time ASC`

	var rows []tripRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	trips := make([]*domain.Trip, 0, len(rows))
	for _, row := range rows {
		trips = append(trips, row.toDomain())
	}

	return trips, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE substring pattern matching s literally,
// escaping with the default backslash escape character.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
