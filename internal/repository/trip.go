package repository

import (
	"context"
	"time"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// TripRepository defines the persistence operations the booking ledger needs on trips.
// Only seat counters are ever written; the catalog itself is maintained elsewhere.
type TripRepository interface {
	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByIDForUpdate retrieves a trip and locks its row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error)

	// UpdateAvailableSeats stores a new available seat count for the trip.
	UpdateAvailableSeats(ctx context.Context, id string, availableSeats int) error
}

// TripFilter narrows a trip catalog search. Zero values are ignored.
type TripFilter struct {
	DepartureCity string
	ArrivalCity   string
	Date          time.Time
}

// TripCatalog is the read side of the trip catalog.
type TripCatalog interface {
	// Search returns active trips matching the filter ordered by departure time.
	Search(ctx context.Context, filter TripFilter) ([]*domain.Trip, error)
}
