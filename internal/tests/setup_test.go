package tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/gateway"
	"github.com/jelani-tech/minibus-booking-backend/internal/service"
)

const (
	riderID   = "user-1"
	otherUser = "user-2"
)

var tripPrice = decimal.NewFromInt(2500)

type fixture struct {
	store    *MemoryStore
	wave     *MockGateway
	orange   *MockGateway
	locker   *MockPaymentLocker
	cache    *MockTripCache
	catalog  *MockTripCatalog
	bookings *service.BookingService
	payments *service.PaymentService
	trips    *service.TripService
	receipts *service.ReceiptService
	logs     *test.Hook
}

// newFixture wires the services over in-memory collaborators. notifier may be nil.
func newFixture(t *testing.T, notifier *service.NotificationService) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		store:   NewMemoryStore(),
		wave:    NewMockGateway(domain.PaymentMethodWave),
		orange:  NewMockGateway(domain.PaymentMethodOrangeMoney),
		locker:  NewMockPaymentLocker(),
		cache:   NewMockTripCache(),
		catalog: &MockTripCatalog{},
		logs:    hook,
	}

	repos := f.store.Repositories()
	registry := gateway.NewRegistry(f.wave, f.orange)

	f.bookings = service.NewBookingService(repos, f.store, f.cache, notifier, logger)
	f.payments = service.NewPaymentService(repos, f.store, registry, f.locker, notifier, logger)
	f.trips = service.NewTripService(repos.Trips, f.catalog, f.cache, logger)
	f.receipts = service.NewReceiptService(repos)

	return f
}

func (f *fixture) seedTrip(totalSeats int) *domain.Trip {
	departure := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)
	trip := &domain.Trip{
		ID:             uuid.New().String(),
		DepartureCity:  "Abidjan",
		ArrivalCity:    "Yamoussoukro",
		DepartureTime:  departure,
		ArrivalTime:    departure.Add(3 * time.Hour),
		Price:          tripPrice,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		Status:         domain.TripStatusActive,
		DriverName:     "Kouassi",
		DriverPhone:    "0700000000",
		VehicleNumber:  "AB-1234-CI",
	}
	f.store.AddTrip(trip)
	return trip
}

func (f *fixture) reserve(t *testing.T, tripID string, seats int) *domain.Booking {
	t.Helper()

	booking, err := f.bookings.Reserve(context.Background(), reserveRequest(tripID, seats))
	require.NoError(t, err)
	return booking
}

func (f *fixture) initiate(t *testing.T, bookingID string, method domain.PaymentMethod) *service.InitiatePaymentResult {
	t.Helper()

	result, err := f.payments.Initiate(context.Background(), service.InitiatePaymentRequest{
		BookingID: bookingID,
		UserID:    riderID,
		Method:    string(method),
	})
	require.NoError(t, err)
	return result
}

func reserveRequest(tripID string, seats int) service.ReserveRequest {
	return service.ReserveRequest{
		UserID:         riderID,
		TripID:         tripID,
		NumberOfSeats:  seats,
		PassengerName:  "Aya Koné",
		PassengerPhone: "0701020304",
	}
}

func decimalInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}
