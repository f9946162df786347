package tests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/gateway"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
	"github.com/jelani-tech/minibus-booking-backend/internal/service"
)

// ──────────────────────────────────────────────
// 1. INITIATION
// ──────────────────────────────────────────────

func TestPayment_InitiateThenWebhook_ConfirmsBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	trip := f.seedTrip(5)
	booking := f.reserve(t, trip.ID, 3)

	result := f.initiate(t, booking.ID, domain.PaymentMethodWave)

	payment := result.Payment
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, "wave-tx-1", payment.TransactionID)
	assert.Equal(t, domain.PaymentMethodWave, payment.Method)
	assert.True(t, booking.TotalPrice.Equal(payment.Amount))
	assert.Equal(t, 1, payment.Attempts)
	assert.Equal(t, "https://pay.example/checkout", result.PaymentURL)

	requests := f.wave.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, domain.MerchantReference(booking.ID, payment.ID, 1), requests[0].Reference)
	assert.Equal(t, booking.PassengerPhone, requests[0].Phone)
	assert.True(t, booking.TotalPrice.Equal(requests[0].Amount))

	reconciled, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{
		TransactionID: "wave-tx-1",
		Status:        "success",
		Payload:       []byte(`{"transaction_id":"wave-tx-1","status":"success"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, reconciled.Status)
	assert.Equal(t, domain.BookingStatusConfirmed, f.store.Booking(booking.ID).Status)

	stored, ok := f.store.PaymentForBooking(booking.ID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusCompleted, stored.Status)
	assert.JSONEq(t, `{"transaction_id":"wave-tx-1","status":"success"}`, string(stored.RawResponse))
}

func TestPayment_ExplicitPhoneOverridesPassengerPhone(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)

	_, err := f.payments.Initiate(context.Background(), service.InitiatePaymentRequest{
		BookingID: booking.ID,
		UserID:    riderID,
		Method:    " Orange_Money ",
		Phone:     "0555555555",
	})
	require.NoError(t, err)

	requests := f.orange.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "0555555555", requests[0].Phone)
	assert.Equal(t, int32(0), f.wave.InitiateCallCount)
}

func TestPayment_Reinitiate_UpdatesInPlace(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 2)

	first := f.initiate(t, booking.ID, domain.PaymentMethodWave)
	second := f.initiate(t, booking.ID, domain.PaymentMethodOrangeMoney)

	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, 1, f.store.PaymentCount())
	assert.Equal(t, int32(1), f.store.CreatePaymentCount)

	stored, ok := f.store.PaymentForBooking(booking.ID)
	require.True(t, ok)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, domain.PaymentMethodOrangeMoney, stored.Method)
	assert.Equal(t, "orange_money-tx-1", stored.TransactionID)
	assert.Equal(t, domain.PaymentStatusPending, stored.Status)

	// Each attempt carries its own merchant reference.
	assert.Equal(t, domain.MerchantReference(booking.ID, stored.ID, 1), f.wave.Requests()[0].Reference)
	assert.Equal(t, domain.MerchantReference(booking.ID, stored.ID, 2), f.orange.Requests()[0].Reference)

	// The superseded attempt can no longer settle the payment.
	_, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: "wave-tx-1", Status: "success"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, domain.BookingStatusPending, f.store.Booking(booking.ID).Status)
}

func TestPayment_GatewayError_LeavesStateUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 2)
	f.initiate(t, booking.ID, domain.PaymentMethodWave)

	f.wave.InitiateError = &gateway.Error{
		Provider:   domain.PaymentMethodWave,
		StatusCode: http.StatusServiceUnavailable,
		Message:    `{"message":"maintenance"}`,
	}

	_, err := f.payments.Initiate(context.Background(), service.InitiatePaymentRequest{
		BookingID: booking.ID,
		UserID:    riderID,
		Method:    "wave",
	})

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.StatusCode)

	stored, ok := f.store.PaymentForBooking(booking.ID)
	require.True(t, ok)
	assert.Equal(t, "wave-tx-1", stored.TransactionID)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, domain.PaymentStatusPending, stored.Status)

	// A retry after the provider recovers replaces the attempt.
	f.wave.InitiateError = nil
	retry := f.initiate(t, booking.ID, domain.PaymentMethodWave)
	assert.Equal(t, "wave-tx-2", retry.Payment.TransactionID)
	assert.Equal(t, 1, f.store.PaymentCount())
}

func TestPayment_GatewayErrorOnFirstAttempt_CreatesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 2)
	f.wave.InitiateError = &gateway.Error{Provider: domain.PaymentMethodWave, Err: errors.New("connection refused")}

	_, err := f.payments.Initiate(context.Background(), service.InitiatePaymentRequest{
		BookingID: booking.ID,
		UserID:    riderID,
		Method:    "wave",
	})

	require.Error(t, err)
	assert.Equal(t, 0, f.store.PaymentCount())
	assert.Equal(t, int32(1), f.store.CommitCount, "only the reservation committed")
}

func TestPayment_InitiateRejections(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		setup   func(f *fixture, booking *domain.Booking) service.InitiatePaymentRequest
		wantErr error
	}{
		{
			name: "unknown booking",
			setup: func(_ *fixture, _ *domain.Booking) service.InitiatePaymentRequest {
				return service.InitiatePaymentRequest{BookingID: "missing", UserID: riderID, Method: "wave"}
			},
			wantErr: repository.ErrNotFound,
		},
		{
			name: "other user",
			setup: func(_ *fixture, b *domain.Booking) service.InitiatePaymentRequest {
				return service.InitiatePaymentRequest{BookingID: b.ID, UserID: otherUser, Method: "wave"}
			},
			wantErr: service.ErrForbidden,
		},
		{
			name: "cancelled booking",
			setup: func(f *fixture, b *domain.Booking) service.InitiatePaymentRequest {
				_, err := f.bookings.Cancel(context.Background(), b.ID, riderID)
				if err != nil {
					panic(err)
				}
				return service.InitiatePaymentRequest{BookingID: b.ID, UserID: riderID, Method: "wave"}
			},
			wantErr: service.ErrInvalidState,
		},
		{
			name: "completed payment",
			setup: func(f *fixture, b *domain.Booking) service.InitiatePaymentRequest {
				f.store.AddPayment(&domain.Payment{
					ID:            "paid",
					BookingID:     b.ID,
					Amount:        b.TotalPrice,
					Method:        domain.PaymentMethodWave,
					TransactionID: "wave-old",
					Status:        domain.PaymentStatusCompleted,
					Attempts:      1,
				})
				return service.InitiatePaymentRequest{BookingID: b.ID, UserID: riderID, Method: "wave"}
			},
			wantErr: service.ErrAlreadyPaid,
		},
		{
			name: "unknown method",
			setup: func(_ *fixture, b *domain.Booking) service.InitiatePaymentRequest {
				return service.InitiatePaymentRequest{BookingID: b.ID, UserID: riderID, Method: "paypal"}
			},
			wantErr: service.ErrInvalidPaymentMethod,
		},
		{
			name: "method without adapter",
			setup: func(_ *fixture, b *domain.Booking) service.InitiatePaymentRequest {
				return service.InitiatePaymentRequest{BookingID: b.ID, UserID: riderID, Method: "mtn_momo"}
			},
			wantErr: service.ErrInvalidPaymentMethod,
		},
		{
			name: "initiation already running",
			setup: func(f *fixture, b *domain.Booking) service.InitiatePaymentRequest {
				f.locker.Hold(b.ID)
				return service.InitiatePaymentRequest{BookingID: b.ID, UserID: riderID, Method: "wave"}
			},
			wantErr: service.ErrPaymentInProgress,
		},
		{
			name: "empty booking id",
			setup: func(_ *fixture, _ *domain.Booking) service.InitiatePaymentRequest {
				return service.InitiatePaymentRequest{UserID: riderID, Method: "wave"}
			},
			wantErr: service.ErrInvalidBookingID,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			booking := f.reserve(t, f.seedTrip(5).ID, 1)
			req := tc.setup(f, booking)

			_, err := f.payments.Initiate(context.Background(), req)

			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, int32(0), f.wave.InitiateCallCount)
		})
	}
}

func TestPayment_LockFailure_IsWrapped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)
	f.locker.AcquireError = errors.New("redis: connection pool timeout")

	_, err := f.payments.Initiate(context.Background(), service.InitiatePaymentRequest{
		BookingID: booking.ID,
		UserID:    riderID,
		Method:    "wave",
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrPaymentInProgress)
	assert.Contains(t, err.Error(), "acquire payment lock")
}

// ──────────────────────────────────────────────
// 2. RECONCILIATION
// ──────────────────────────────────────────────

func TestReconcile_SameTerminalStatusTwice_IsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 2)
	txID := f.initiate(t, booking.ID, domain.PaymentMethodWave).Payment.TransactionID

	first, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: "completed"})
	require.NoError(t, err)
	updates := f.store.UpdatePaymentCount

	second, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: "paid"})
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, second.Status)
	assert.Equal(t, updates, f.store.UpdatePaymentCount)
	assert.Equal(t, domain.BookingStatusConfirmed, f.store.Booking(booking.ID).Status)
}

func TestReconcile_StatusVocabulary(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status      string
		wantPayment domain.PaymentStatus
		wantBooking domain.BookingStatus
	}{
		{"completed", domain.PaymentStatusCompleted, domain.BookingStatusConfirmed},
		{"SUCCESS", domain.PaymentStatusCompleted, domain.BookingStatusConfirmed},
		{"paid", domain.PaymentStatusCompleted, domain.BookingStatusConfirmed},
		{"failed", domain.PaymentStatusFailed, domain.BookingStatusPending},
		{"cancelled", domain.PaymentStatusFailed, domain.BookingStatusPending},
		{"error", domain.PaymentStatusFailed, domain.BookingStatusPending},
		{"processing", domain.PaymentStatusPending, domain.BookingStatusPending},
		{"", domain.PaymentStatusPending, domain.BookingStatusPending},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("status=%q", tc.status), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			booking := f.reserve(t, f.seedTrip(5).ID, 1)
			txID := f.initiate(t, booking.ID, domain.PaymentMethodWave).Payment.TransactionID

			payment, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{
				TransactionID: txID,
				Status:        tc.status,
				Payload:       []byte(`{"raw":true}`),
			})
			require.NoError(t, err)

			assert.Equal(t, tc.wantPayment, payment.Status)
			assert.Equal(t, tc.wantBooking, f.store.Booking(booking.ID).Status)

			stored, _ := f.store.PaymentForBooking(booking.ID)
			assert.Equal(t, `{"raw":true}`, string(stored.RawResponse))
		})
	}
}

func TestReconcile_TerminalPaymentsNeverRegress(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)
	txID := f.initiate(t, booking.ID, domain.PaymentMethodWave).Payment.TransactionID

	_, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: "failed"})
	require.NoError(t, err)

	for _, status := range []string{"success", "pending", "completed"} {
		payment, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: status})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusFailed, payment.Status)
	}

	assert.Equal(t, domain.BookingStatusPending, f.store.Booking(booking.ID).Status)

	var warned bool
	for _, entry := range f.logs.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "conflicting status") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestReconcile_FailedThenRetried_Completes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)
	first := f.initiate(t, booking.ID, domain.PaymentMethodWave).Payment.TransactionID

	_, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: first, Status: "failed"})
	require.NoError(t, err)

	retry := f.initiate(t, booking.ID, domain.PaymentMethodWave)
	assert.Equal(t, domain.PaymentStatusPending, retry.Payment.Status)
	assert.Equal(t, 2, retry.Payment.Attempts)

	payment, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: retry.Payment.TransactionID, Status: "success"})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, domain.BookingStatusConfirmed, f.store.Booking(booking.ID).Status)
	assert.Equal(t, 1, f.store.PaymentCount())
}

func TestReconcile_UnknownOrMissingTransaction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	_, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: "nope", Status: "success"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: "  ", Status: "success"})
	assert.ErrorIs(t, err, service.ErrMissingTransactionID)
}

func TestReconcile_CompletedAfterCancel_KeepsBookingCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	trip := f.seedTrip(5)
	booking := f.reserve(t, trip.ID, 2)
	txID := f.initiate(t, booking.ID, domain.PaymentMethodWave).Payment.TransactionID

	_, err := f.bookings.Cancel(context.Background(), booking.ID, riderID)
	require.NoError(t, err)

	payment, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: "success"})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, domain.BookingStatusCancelled, f.store.Booking(booking.ID).Status)
	assert.Equal(t, 5, f.store.Trip(trip.ID).AvailableSeats)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "payment completed for a cancelled booking", entry.Message)
}

func TestReconcile_BookingUpdateFails_RollsBackPayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)
	txID := f.initiate(t, booking.ID, domain.PaymentMethodWave).Payment.TransactionID
	f.store.UpdateBookingStatusError = errors.New("deadlock detected")

	_, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: "success"})
	require.Error(t, err)

	stored, _ := f.store.PaymentForBooking(booking.ID)
	assert.Equal(t, domain.PaymentStatusPending, stored.Status)
	assert.Equal(t, domain.BookingStatusPending, f.store.Booking(booking.ID).Status)

	// The provider's retry goes through once the store recovers.
	f.store.UpdateBookingStatusError = nil
	payment, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: "success"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, domain.BookingStatusConfirmed, f.store.Booking(booking.ID).Status)
}

// ──────────────────────────────────────────────
// 3. STATUS & REFRESH
// ──────────────────────────────────────────────

func TestStatus_ChecksOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)

	_, err := f.payments.Status(context.Background(), booking.ID, riderID)
	assert.ErrorIs(t, err, repository.ErrNotFound, "no payment yet")

	f.initiate(t, booking.ID, domain.PaymentMethodWave)

	payment, err := f.payments.Status(context.Background(), booking.ID, riderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)

	_, err = f.payments.Status(context.Background(), booking.ID, otherUser)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestRefresh_AppliesProviderStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)
	f.initiate(t, booking.ID, domain.PaymentMethodWave)

	payment, err := f.payments.Refresh(context.Background(), booking.ID, riderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)

	f.wave.VerifyStatus = gateway.StatusSuccess
	payment, err = f.payments.Refresh(context.Background(), booking.ID, riderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, domain.BookingStatusConfirmed, f.store.Booking(booking.ID).Status)

	// Settled payments are not polled again.
	_, err = f.payments.Refresh(context.Background(), booking.ID, riderID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.wave.VerifyCallCount)
}

func TestRefresh_ProviderError_Propagates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)
	f.initiate(t, booking.ID, domain.PaymentMethodWave)
	f.wave.VerifyError = &gateway.Error{Provider: domain.PaymentMethodWave, StatusCode: http.StatusBadGateway, Message: "upstream"}

	_, err := f.payments.Refresh(context.Background(), booking.ID, riderID)

	var gwErr *gateway.Error
	assert.True(t, errors.As(err, &gwErr))
	stored, _ := f.store.PaymentForBooking(booking.ID)
	assert.Equal(t, domain.PaymentStatusPending, stored.Status)
}

// ──────────────────────────────────────────────
// ROW LOCKS
// ──────────────────────────────────────────────

func TestPayment_LocksBookingThenPayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	booking := f.reserve(t, f.seedTrip(5).ID, 1)
	f.store.Locks()

	txID := f.initiate(t, booking.ID, domain.PaymentMethodWave).Payment.TransactionID
	assert.Equal(t, []string{"booking:" + booking.ID, "payment:" + booking.ID}, f.store.Locks())

	_, err := f.payments.Reconcile(context.Background(), service.ReconcileRequest{TransactionID: txID, Status: "success"})
	require.NoError(t, err)
	assert.Equal(t, []string{"booking:" + booking.ID, "payment:" + booking.ID}, f.store.Locks())
}
