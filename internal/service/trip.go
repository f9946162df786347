package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/redis"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

// SearchDateLayout is the accepted format of a trip search date.
const SearchDateLayout = "2006-01-02"

// TripService serves the read side of the trip catalog.
type TripService struct {
	tripRepo  repository.TripRepository
	catalog   repository.TripCatalog
	tripCache redis.TripCache
	logger    logrus.FieldLogger
}

// NewTripService creates a new TripService. tripCache may be nil.
func NewTripService(
	tripRepo repository.TripRepository,
	catalog repository.TripCatalog,
	tripCache redis.TripCache,
	logger logrus.FieldLogger,
) *TripService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TripService{
		tripRepo:  tripRepo,
		catalog:   catalog,
		tripCache: tripCache,
		logger:    logger,
	}
}

// SearchTripsRequest contains the optional trip search filters.
type SearchTripsRequest struct {
	DepartureCity string
	ArrivalCity   string
	Date          string
}

// Search returns active trips matching the filters, earliest departure first.
func (s *TripService) Search(ctx context.Context, req SearchTripsRequest) ([]*domain.Trip, error) {
	filter := repository.TripFilter{
		DepartureCity: strings.TrimSpace(req.DepartureCity),
		ArrivalCity:   strings.TrimSpace(req.ArrivalCity),
	}

	if req.Date != "" {
		date, err := time.Parse(SearchDateLayout, req.Date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		filter.Date = date
	}

	return s.catalog.Search(ctx, filter)
}

// GetTrip retrieves a trip by ID, reading through the cache.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	logger := s.logger.WithField("trip_id", tripID)

	// The generation is read before the row so a reservation committed in
	// between makes the cache write a no-op.
	var generation int64
	cacheable := false
	if s.tripCache != nil {
		cached, err := s.tripCache.GetTrip(ctx, tripID)
		if err != nil {
			logger.WithError(err).Warn("trip cache read failed")
		} else if cached != nil {
			return cached, nil
		}

		generation, err = s.tripCache.TripGeneration(ctx, tripID)
		if err != nil {
			logger.WithError(err).Warn("trip cache generation read failed")
		} else {
			cacheable = true
		}
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if cacheable {
		err := s.tripCache.SetTrip(ctx, trip, generation)
		switch {
		case errors.Is(err, redis.ErrStaleTrip):
			logger.Debug("trip changed while loading, not cached")
		case err != nil:
			logger.WithError(err).Warn("trip cache write failed")
		}
	}

	return trip, nil
}
