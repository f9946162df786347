package redis

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// CacheStore handles trip caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// TripCacheTTL bounds how stale a cached seat count can be when an
// invalidation is lost.
const TripCacheTTL = 30 * time.Second

// tripGenerationTTL outlives any read that could race an invalidation.
const tripGenerationTTL = 24 * time.Hour

const tripCachePrefix = "cache:trip:"

// ErrStaleTrip is returned by SetTrip when the trip was invalidated after the
// caller read its generation.
var ErrStaleTrip = errors.New("trip changed since it was read")

func tripGenerationKey(tripID string) string {
	return tripCachePrefix + tripID + ":gen"
}

// CachedTrip represents a cached trip entity.
type CachedTrip struct {
	ID             string          `json:"id"`
	DepartureCity  string          `json:"departure_city"`
	ArrivalCity    string          `json:"arrival_city"`
	DepartureTime  time.Time       `json:"departure_time"`
	ArrivalTime    time.Time       `json:"arrival_time"`
	Price          decimal.Decimal `json:"price"`
	TotalSeats     int             `json:"total_seats"`
	AvailableSeats int             `json:"available_seats"`
	Status         string          `json:"status"`
	DriverName     string          `json:"driver_name"`
	DriverPhone    string          `json:"driver_phone"`
	VehicleNumber  string          `json:"vehicle_number"`
}

// GetTrip retrieves a trip from cache. A miss returns nil, nil.
func (s *CacheStore) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	data, err := s.client.Get(ctx, tripCachePrefix+tripID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached CachedTrip
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &domain.Trip{
		ID:             cached.ID,
		DepartureCity:  cached.DepartureCity,
		ArrivalCity:    cached.ArrivalCity,
		DepartureTime:  cached.DepartureTime,
		ArrivalTime:    cached.ArrivalTime,
		Price:          cached.Price,
		TotalSeats:     cached.TotalSeats,
		AvailableSeats: cached.AvailableSeats,
		Status:         domain.TripStatus(cached.Status),
		DriverName:     cached.DriverName,
		DriverPhone:    cached.DriverPhone,
		VehicleNumber:  cached.VehicleNumber,
	}, nil
}

// TripGeneration returns the trip's invalidation counter. Read it before
// loading the trip from the database and hand it back to SetTrip.
func (s *CacheStore) TripGeneration(ctx context.Context, tripID string) (int64, error) {
	generation, err := s.client.Get(ctx, tripGenerationKey(tripID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

// SetTrip stores a trip in cache unless it was invalidated since generation
// was read, in which case ErrStaleTrip is returned.
func (s *CacheStore) SetTrip(ctx context.Context, trip *domain.Trip, generation int64) error {
	data, err := json.Marshal(CachedTrip{
		ID:             trip.ID,
		DepartureCity:  trip.DepartureCity,
		ArrivalCity:    trip.ArrivalCity,
		DepartureTime:  trip.DepartureTime,
		ArrivalTime:    trip.ArrivalTime,
		Price:          trip.Price,
		TotalSeats:     trip.TotalSeats,
		AvailableSeats: trip.AvailableSeats,
		Status:         string(trip.Status),
		DriverName:     trip.DriverName,
		DriverPhone:    trip.DriverPhone,
		VehicleNumber:  trip.VehicleNumber,
	})
	if err != nil {
		return err
	}

	genKey := tripGenerationKey(trip.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrStaleTrip
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, tripCachePrefix+trip.ID, data, TripCacheTTL)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleTrip
	}
	return err
}

// InvalidateTrip removes a trip from cache and bumps its generation so that
// reads started before the change cannot cache it again.
func (s *CacheStore) InvalidateTrip(ctx context.Context, tripID string) error {
	genKey := tripGenerationKey(tripID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, tripGenerationTTL)
		pipe.Del(ctx, tripCachePrefix+tripID)
		return nil
	})
	return err
}
