package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/gateway"
	"github.com/jelani-tech/minibus-booking-backend/internal/middleware"
	"github.com/jelani-tech/minibus-booking-backend/internal/redis"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

// ──────────────────────────────────────────────
// MEMORY STORE
// ──────────────────────────────────────────────

// MemoryStore is an in-memory implementation of the repositories and the
// Transactor. Transactions are serialized and roll back by restoring a
// snapshot, which gives the same guarantees as row locks in Postgres.
type MemoryStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	trips    map[string]domain.Trip
	bookings map[string]domain.Booking
	payments map[string]domain.Payment

	// Row locks taken by FOR UPDATE reads, in call order.
	locks []string

	// Counters for verification
	CommitCount               int32
	RollbackCount             int32
	UpdateAvailableSeatsCount int32
	CreatePaymentCount        int32
	UpdatePaymentCount        int32
	UpdateBookingStatusCount  int32

	// Error injection
	CreateBookingError        error
	UpdateBookingStatusError  error
	UpdatePaymentError        error
	UpdateAvailableSeatsError error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:    make(map[string]domain.Trip),
		bookings: make(map[string]domain.Booking),
		payments: make(map[string]domain.Payment),
	}
}

// Repositories returns repositories reading and writing the store outside any transaction.
func (m *MemoryStore) Repositories() repository.Repositories {
	return repository.Repositories{
		Trips:    &memoryTrips{store: m},
		Bookings: &memoryBookings{store: m},
		Payments: &memoryPayments{store: m},
	}
}

// WithinTx runs fn as one serialized unit of work.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot := m.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.restore(snapshot)
			atomic.AddInt32(&m.RollbackCount, 1)
			panic(p)
		}
		if err != nil {
			m.restore(snapshot)
			atomic.AddInt32(&m.RollbackCount, 1)
			return
		}
		atomic.AddInt32(&m.CommitCount, 1)
	}()

	return fn(context.WithoutCancel(ctx), m.Repositories())
}

type memorySnapshot struct {
	trips    map[string]domain.Trip
	bookings map[string]domain.Booking
	payments map[string]domain.Payment
}

func (m *MemoryStore) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memorySnapshot{
		trips:    make(map[string]domain.Trip, len(m.trips)),
		bookings: make(map[string]domain.Booking, len(m.bookings)),
		payments: make(map[string]domain.Payment, len(m.payments)),
	}
	for k, v := range m.trips {
		s.trips[k] = v
	}
	for k, v := range m.bookings {
		s.bookings[k] = v
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = s.trips
	m.bookings = s.bookings
	m.payments = s.payments
}

// AddTrip adds a trip to the store.
func (m *MemoryStore) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = *trip
}

// AddBooking adds a booking to the store.
func (m *MemoryStore) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = *booking
}

// AddPayment adds a payment to the store.
func (m *MemoryStore) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = *payment
}

// Trip returns a copy of a stored trip for test assertions.
func (m *MemoryStore) Trip(id string) domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// Booking returns a copy of a stored booking for test assertions.
func (m *MemoryStore) Booking(id string) domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookings[id]
}

// PaymentForBooking returns the stored payment of a booking for test assertions.
func (m *MemoryStore) PaymentForBooking(bookingID string) (domain.Payment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			return p, true
		}
	}
	return domain.Payment{}, false
}

func (m *MemoryStore) recordLock(row string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, row)
}

// Locks returns the rows locked so far, in order, and clears the log.
func (m *MemoryStore) Locks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	locks := m.locks
	m.locks = nil
	return locks
}

// PaymentCount returns the number of stored payments.
func (m *MemoryStore) PaymentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

type memoryTrips struct {
	store *MemoryStore
}

func (r *memoryTrips) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	trip, ok := r.store.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &trip, nil
}

func (r *memoryTrips) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	r.store.recordLock("trip:" + id)
	return r.GetByID(ctx, id)
}

func (r *memoryTrips) UpdateAvailableSeats(ctx context.Context, id string, availableSeats int) error {
	atomic.AddInt32(&r.store.UpdateAvailableSeatsCount, 1)
	if r.store.UpdateAvailableSeatsError != nil {
		return r.store.UpdateAvailableSeatsError
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	trip, ok := r.store.trips[id]
	if !ok {
		return repository.ErrNotFound
	}
	if availableSeats < 0 || availableSeats > trip.TotalSeats {
		return fmt.Errorf("available seats %d out of range [0, %d]", availableSeats, trip.TotalSeats)
	}
	trip.AvailableSeats = availableSeats
	r.store.trips[id] = trip
	return nil
}

type memoryBookings struct {
	store *MemoryStore
}

func (r *memoryBookings) Create(ctx context.Context, booking *domain.Booking) error {
	if r.store.CreateBookingError != nil {
		return r.store.CreateBookingError
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.bookings[booking.ID] = *booking
	return nil
}

func (r *memoryBookings) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	booking, ok := r.store.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &booking, nil
}

func (r *memoryBookings) GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	r.store.recordLock("booking:" + id)
	return r.GetByID(ctx, id)
}

func (r *memoryBookings) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]*domain.Booking, 0)
	for _, b := range r.store.bookings {
		if b.UserID == userID {
			copy := b
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryBookings) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) error {
	atomic.AddInt32(&r.store.UpdateBookingStatusCount, 1)
	if r.store.UpdateBookingStatusError != nil {
		return r.store.UpdateBookingStatusError
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	booking, ok := r.store.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	booking.Status = status
	r.store.bookings[id] = booking
	return nil
}

type memoryPayments struct {
	store *MemoryStore
}

func (r *memoryPayments) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&r.store.CreatePaymentCount, 1)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.payments {
		if p.BookingID == payment.BookingID {
			return fmt.Errorf("duplicate payment for booking %s", payment.BookingID)
		}
	}
	r.store.payments[payment.ID] = *payment
	return nil
}

func (r *memoryPayments) Update(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&r.store.UpdatePaymentCount, 1)
	if r.store.UpdatePaymentError != nil {
		return r.store.UpdatePaymentError
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.payments[payment.ID]; !ok {
		return repository.ErrNotFound
	}
	r.store.payments[payment.ID] = *payment
	return nil
}

func (r *memoryPayments) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, p := range r.store.payments {
		if p.BookingID == bookingID {
			copy := p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryPayments) GetByBookingIDForUpdate(ctx context.Context, bookingID string) (*domain.Payment, error) {
	r.store.recordLock("payment:" + bookingID)
	return r.GetByBookingID(ctx, bookingID)
}

func (r *memoryPayments) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, p := range r.store.payments {
		if transactionID != "" && p.TransactionID == transactionID {
			copy := p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a scripted payment provider.
type MockGateway struct {
	mu     sync.Mutex
	method domain.PaymentMethod
	seq    int

	// PaymentURL is returned on every successful initiation.
	PaymentURL string

	// VerifyStatus is returned by VerifyPayment.
	VerifyStatus gateway.Status

	// Counters for verification
	InitiateCallCount int32
	VerifyCallCount   int32

	// Error injection
	InitiateError error
	VerifyError   error

	requests []gateway.InitiateRequest
}

// NewMockGateway creates a mock adapter for method.
func NewMockGateway(method domain.PaymentMethod) *MockGateway {
	return &MockGateway{
		method:       method,
		PaymentURL:   "https://pay.example/checkout",
		VerifyStatus: gateway.StatusPending,
	}
}

func (g *MockGateway) Method() domain.PaymentMethod {
	return g.method
}

func (g *MockGateway) InitiatePayment(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	atomic.AddInt32(&g.InitiateCallCount, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.InitiateError != nil {
		return nil, g.InitiateError
	}
	g.seq++
	txID := fmt.Sprintf("%s-tx-%d", g.method, g.seq)
	return &gateway.InitiateResult{
		TransactionID: txID,
		PaymentURL:    g.PaymentURL,
		Status:        gateway.StatusPending,
		Raw:           []byte(fmt.Sprintf(`{"id":%q}`, txID)),
	}, nil
}

func (g *MockGateway) VerifyPayment(ctx context.Context, transactionID string) (*gateway.VerifyResult, error) {
	atomic.AddInt32(&g.VerifyCallCount, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.VerifyError != nil {
		return nil, g.VerifyError
	}
	return &gateway.VerifyResult{
		TransactionID: transactionID,
		Status:        g.VerifyStatus,
		Raw:           []byte(fmt.Sprintf(`{"id":%q,"status":%q}`, transactionID, g.VerifyStatus)),
	}, nil
}

// Requests returns the initiation requests received so far.
func (g *MockGateway) Requests() []gateway.InitiateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gateway.InitiateRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockPaymentLocker is an in-process PaymentLocker.
type MockPaymentLocker struct {
	mu   sync.Mutex
	held map[string]bool

	// Counters for verification
	AcquireCallCount int32

	// Error injection
	AcquireError error
}

// NewMockPaymentLocker creates a new MockPaymentLocker.
func NewMockPaymentLocker() *MockPaymentLocker {
	return &MockPaymentLocker{held: make(map[string]bool)}
}

func (l *MockPaymentLocker) AcquirePaymentLock(ctx context.Context, bookingID string) (func(), error) {
	atomic.AddInt32(&l.AcquireCallCount, 1)
	if l.AcquireError != nil {
		return nil, l.AcquireError
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[bookingID] {
		return nil, redis.ErrLockHeld
	}
	l.held[bookingID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, bookingID)
	}, nil
}

// Hold marks a booking's payment lock as owned by someone else.
func (l *MockPaymentLocker) Hold(bookingID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[bookingID] = true
}

// MockTripCache is a mock implementation of TripCache.
type MockTripCache struct {
	mu          sync.RWMutex
	trips       map[string]domain.Trip
	generations map[string]int64

	// BeforeSet runs at the start of SetTrip, outside the cache lock.
	BeforeSet func()

	// Counters for verification
	GetCallCount        int32
	InvalidateCallCount int32
	StaleSetCount       int32

	// Error injection
	GetError error
}

// NewMockTripCache creates a new MockTripCache.
func NewMockTripCache() *MockTripCache {
	return &MockTripCache{
		trips:       make(map[string]domain.Trip),
		generations: make(map[string]int64),
	}
}

func (c *MockTripCache) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	atomic.AddInt32(&c.GetCallCount, 1)
	if c.GetError != nil {
		return nil, c.GetError
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	trip, ok := c.trips[tripID]
	if !ok {
		return nil, nil
	}
	return &trip, nil
}

func (c *MockTripCache) TripGeneration(ctx context.Context, tripID string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[tripID], nil
}

func (c *MockTripCache) SetTrip(ctx context.Context, trip *domain.Trip, generation int64) error {
	if c.BeforeSet != nil {
		c.BeforeSet()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[trip.ID] != generation {
		atomic.AddInt32(&c.StaleSetCount, 1)
		return redis.ErrStaleTrip
	}
	c.trips[trip.ID] = *trip
	return nil
}

func (c *MockTripCache) InvalidateTrip(ctx context.Context, tripID string) error {
	atomic.AddInt32(&c.InvalidateCallCount, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[tripID]++
	delete(c.trips, tripID)
	return nil
}

// Cached reports whether a trip is currently cached.
func (c *MockTripCache) Cached(tripID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.trips[tripID]
	return ok
}

// MockTripCatalog returns the trips it was seeded with and records the last filter.
type MockTripCatalog struct {
	mu         sync.Mutex
	Trips      []*domain.Trip
	LastFilter repository.TripFilter
}

func (c *MockTripCatalog) Search(ctx context.Context, filter repository.TripFilter) ([]*domain.Trip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastFilter = filter
	return c.Trips, nil
}

// MockResponseStore keeps idempotent responses in memory.
type MockResponseStore struct {
	mu        sync.Mutex
	responses map[string]*redis.CachedResponse

	GetError      error
	SaveCallCount int32
	LastTTL       time.Duration
}

func NewMockResponseStore() *MockResponseStore {
	return &MockResponseStore{responses: make(map[string]*redis.CachedResponse)}
}

func (s *MockResponseStore) GetResponse(ctx context.Context, key string) (*redis.CachedResponse, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses[key], nil
}

func (s *MockResponseStore) SaveResponse(ctx context.Context, key string, response *redis.CachedResponse, ttl time.Duration) error {
	atomic.AddInt32(&s.SaveCallCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	body := append([]byte(nil), response.Body...)
	s.responses[key] = &redis.CachedResponse{StatusCode: response.StatusCode, Body: body, Headers: response.Headers.Clone()}
	s.LastTTL = ttl
	return nil
}

// Keys returns the stored keys.
func (s *MockResponseStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.responses))
	for k := range s.responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ensure mocks implement interfaces.
var (
	_ repository.Transactor        = (*MemoryStore)(nil)
	_ repository.TripRepository    = (*memoryTrips)(nil)
	_ repository.BookingRepository = (*memoryBookings)(nil)
	_ repository.PaymentRepository = (*memoryPayments)(nil)
	_ repository.TripCatalog       = (*MockTripCatalog)(nil)
	_ gateway.Gateway              = (*MockGateway)(nil)
	_ redis.PaymentLocker          = (*MockPaymentLocker)(nil)
	_ redis.TripCache              = (*MockTripCache)(nil)
	_ middleware.ResponseStore     = (*MockResponseStore)(nil)
)
