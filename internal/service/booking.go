package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/redis"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

// BookingService handles seat reservations and cancellations.
type BookingService struct {
	repos               repository.Repositories
	tx                  repository.Transactor
	tripCache           redis.TripCache
	notificationService *NotificationService
	logger              logrus.FieldLogger
	now                 func() time.Time
}

// NewBookingService creates a new BookingService. tripCache and
// notificationService may be nil.
func NewBookingService(
	repos repository.Repositories,
	tx repository.Transactor,
	tripCache redis.TripCache,
	notificationService *NotificationService,
	logger logrus.FieldLogger,
) *BookingService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BookingService{
		repos:               repos,
		tx:                  tx,
		tripCache:           tripCache,
		notificationService: notificationService,
		logger:              logger,
		now:                 time.Now,
	}
}

// ReserveRequest contains the parameters for reserving seats on a trip.
type ReserveRequest struct {
	UserID         string
	TripID         string
	NumberOfSeats  int
	PassengerName  string
	PassengerPhone string
}

func (r *ReserveRequest) validate() error {
	r.PassengerName = strings.TrimSpace(r.PassengerName)
	r.PassengerPhone = strings.TrimSpace(r.PassengerPhone)

	switch {
	case r.UserID == "":
		return ErrInvalidUserID
	case r.TripID == "":
		return ErrInvalidTripID
	case r.NumberOfSeats <= 0:
		return ErrInvalidSeatCount
	case r.PassengerName == "":
		return ErrMissingPassengerName
	case r.PassengerPhone == "":
		return ErrMissingPassengerPhone
	}
	return nil
}

// Reserve takes seats off the trip and records a pending booking in one transaction.
// The trip row stays locked until commit so concurrent reservations queue on it.
func (s *BookingService) Reserve(ctx context.Context, req ReserveRequest) (*domain.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var booking *domain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		trip, err := repos.Trips.GetByIDForUpdate(ctx, req.TripID)
		if err != nil {
			return err
		}

		if !trip.IsBookable() {
			return ErrTripUnavailable
		}

		if err := trip.ReserveSeats(req.NumberOfSeats); err != nil {
			return err
		}

		if err := repos.Trips.UpdateAvailableSeats(ctx, trip.ID, trip.AvailableSeats); err != nil {
			return err
		}

		now := s.now()
		booking = &domain.Booking{
			ID:             uuid.New().String(),
			UserID:         req.UserID,
			TripID:         trip.ID,
			NumberOfSeats:  req.NumberOfSeats,
			TotalPrice:     trip.PriceFor(req.NumberOfSeats),
			Status:         domain.BookingStatusPending,
			PassengerName:  req.PassengerName,
			PassengerPhone: req.PassengerPhone,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		return repos.Bookings.Create(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    booking.TripID,
		"seats":      booking.NumberOfSeats,
	}).Info("booking reserved")

	s.invalidateTrip(ctx, booking.TripID)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingReserved(ctx, booking)
	}

	return booking, nil
}

// Cancel cancels a booking and returns its seats to the trip.
// Confirmed bookings can be cancelled too; the payment is left for refund handling.
func (s *BookingService) Cancel(ctx context.Context, bookingID, requesterID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	var booking *domain.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		booking, err = repos.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		if !booking.IsOwnedBy(requesterID) {
			return ErrForbidden
		}

		if booking.Status == domain.BookingStatusCancelled {
			return ErrAlreadyCancelled
		}

		trip, err := repos.Trips.GetByIDForUpdate(ctx, booking.TripID)
		if err != nil {
			return err
		}

		if err := trip.ReleaseSeats(booking.NumberOfSeats); err != nil {
			return err
		}

		if err := repos.Trips.UpdateAvailableSeats(ctx, trip.ID, trip.AvailableSeats); err != nil {
			return err
		}

		if err := repos.Bookings.UpdateStatus(ctx, booking.ID, domain.BookingStatusCancelled); err != nil {
			return err
		}

		booking.Status = domain.BookingStatusCancelled
		booking.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    booking.TripID,
		"seats":      booking.NumberOfSeats,
	}).Info("booking cancelled")

	s.invalidateTrip(ctx, booking.TripID)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingCancelled(ctx, booking)
	}

	return booking, nil
}

// Get retrieves a booking owned by the requester.
func (s *BookingService) Get(ctx context.Context, bookingID, requesterID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.IsOwnedBy(requesterID) {
		return nil, ErrForbidden
	}

	return booking, nil
}

// ListForUser returns the user's bookings, newest first.
func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	return s.repos.Bookings.ListByUser(ctx, userID)
}

func (s *BookingService) invalidateTrip(ctx context.Context, tripID string) {
	if s.tripCache == nil {
		return
	}
	if err := s.tripCache.InvalidateTrip(ctx, tripID); err != nil {
		s.logger.WithError(err).WithField("trip_id", tripID).Warn("failed to invalidate trip cache")
	}
}
