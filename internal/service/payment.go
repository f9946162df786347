package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/gateway"
	"github.com/jelani-tech/minibus-booking-backend/internal/redis"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

// GatewayResolver returns the provider adapter for a payment method.
type GatewayResolver interface {
	Get(method domain.PaymentMethod) (gateway.Gateway, error)
}

// PaymentService pairs payment initiation with provider confirmation.
type PaymentService struct {
	repos               repository.Repositories
	tx                  repository.Transactor
	gateways            GatewayResolver
	locker              redis.PaymentLocker
	notificationService *NotificationService
	logger              logrus.FieldLogger
	now                 func() time.Time
	newID               func() string
}

// NewPaymentService creates a new PaymentService. locker and
// notificationService may be nil.
func NewPaymentService(
	repos repository.Repositories,
	tx repository.Transactor,
	gateways GatewayResolver,
	locker redis.PaymentLocker,
	notificationService *NotificationService,
	logger logrus.FieldLogger,
) *PaymentService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PaymentService{
		repos:               repos,
		tx:                  tx,
		gateways:            gateways,
		locker:              locker,
		notificationService: notificationService,
		logger:              logger,
		now:                 time.Now,
		newID:               func() string { return uuid.New().String() },
	}
}

// InitiatePaymentRequest contains the parameters for starting a payment.
type InitiatePaymentRequest struct {
	BookingID string
	UserID    string
	Method    string
	Phone     string
}

// InitiatePaymentResult is the pending payment plus where to send the rider, if anywhere.
type InitiatePaymentResult struct {
	Payment    *domain.Payment
	PaymentURL string
}

// Initiate starts a payment attempt for a pending booking. The provider is
// called outside any transaction; the attempt is only recorded once the
// provider has accepted it, so a failed call leaves the payment untouched.
func (s *PaymentService) Initiate(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}

	if s.locker != nil {
		release, err := s.locker.AcquirePaymentLock(ctx, req.BookingID)
		if err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				return nil, ErrPaymentInProgress
			}
			return nil, fmt.Errorf("acquire payment lock: %w", err)
		}
		defer release()
	}

	booking, err := s.repos.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if !booking.IsOwnedBy(req.UserID) {
		return nil, ErrForbidden
	}

	if booking.Status != domain.BookingStatusPending {
		return nil, ErrInvalidState
	}

	existing, err := s.repos.Payments.GetByBookingID(ctx, booking.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if existing != nil && existing.Status == domain.PaymentStatusCompleted {
		return nil, ErrAlreadyPaid
	}

	method, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, ErrInvalidPaymentMethod
	}

	gw, err := s.gateways.Get(method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPaymentMethod, err)
	}

	paymentID, attempt := s.newID(), 1
	if existing != nil {
		paymentID, attempt = existing.ID, existing.Attempts+1
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		phone = booking.PassengerPhone
	}

	logger := s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"payment_id": paymentID,
		"provider":   method,
		"attempt":    attempt,
	})

	result, err := gw.InitiatePayment(ctx, gateway.InitiateRequest{
		Amount:    booking.TotalPrice,
		Phone:     phone,
		Reference: domain.MerchantReference(booking.ID, paymentID, attempt),
	})
	if err != nil {
		logger.WithError(err).Warn("payment initiation rejected by provider")
		return nil, err
	}

	var payment *domain.Payment
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		locked, err := repos.Bookings.GetByIDForUpdate(ctx, booking.ID)
		if err != nil {
			return err
		}
		if locked.Status != domain.BookingStatusPending {
			return ErrInvalidState
		}
		booking = locked

		now := s.now()
		created := false
		payment, err = repos.Payments.GetByBookingIDForUpdate(ctx, booking.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			created = true
			payment = &domain.Payment{
				ID:        paymentID,
				BookingID: booking.ID,
				CreatedAt: now,
				Attempts:  attempt,
			}
		case err != nil:
			return err
		case payment.Status == domain.PaymentStatusCompleted:
			return ErrAlreadyPaid
		default:
			payment.Attempts++
		}

		payment.Amount = booking.TotalPrice
		payment.Method = method
		payment.TransactionID = result.TransactionID
		payment.Status = domain.PaymentStatusPending
		payment.RawResponse = result.Raw
		payment.UpdatedAt = now

		if created {
			return repos.Payments.Create(ctx, payment)
		}
		return repos.Payments.Update(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	logger.WithField("transaction_id", payment.TransactionID).Info("payment initiated")

	if s.notificationService != nil {
		_ = s.notificationService.NotifyPaymentInitiated(ctx, booking, payment)
	}

	return &InitiatePaymentResult{Payment: payment, PaymentURL: result.PaymentURL}, nil
}

// ReconcileRequest is a provider callback.
type ReconcileRequest struct {
	TransactionID string
	Status        string
	Payload       []byte
}

// Reconcile applies a provider callback to the payment it addresses. Replays of
// a terminal status are no-ops, and unknown statuses only record the payload.
func (s *PaymentService) Reconcile(ctx context.Context, req ReconcileRequest) (*domain.Payment, error) {
	transactionID := strings.TrimSpace(req.TransactionID)
	if transactionID == "" {
		return nil, ErrMissingTransactionID
	}

	found, err := s.repos.Payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	status, known := domain.ParseProviderStatus(req.Status)
	if !known {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"status":         req.Status,
		}).Info("webhook status not actionable")
		status = domain.PaymentStatusPending
	}

	return s.settle(ctx, found.BookingID, transactionID, status, req.Payload)
}

// Status returns the payment attached to a booking owned by the requester.
func (s *PaymentService) Status(ctx context.Context, bookingID, requesterID string) (*domain.Payment, error) {
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

	return s.repos.Payments.GetByBookingID(ctx, booking.ID)
}

// Refresh polls the provider for a pending payment and applies the answer with
// the same rules as a webhook.
func (s *PaymentService) Refresh(ctx context.Context, bookingID, requesterID string) (*domain.Payment, error) {
	payment, err := s.Status(ctx, bookingID, requesterID)
	if err != nil {
		return nil, err
	}

	if payment.Status.IsTerminal() || payment.TransactionID == "" {
		return payment, nil
	}

	gw, err := s.gateways.Get(payment.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPaymentMethod, err)
	}

	result, err := gw.VerifyPayment(ctx, payment.TransactionID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id":     bookingID,
			"transaction_id": payment.TransactionID,
		}).Warn("payment verification failed")
		return nil, err
	}

	return s.settle(ctx, payment.BookingID, payment.TransactionID, result.Status.PaymentStatus(), result.Raw)
}

// settle moves the booking's payment to status under booking then payment row
// locks, confirming the booking when the payment completes.
func (s *PaymentService) settle(ctx context.Context, bookingID, transactionID string, status domain.PaymentStatus, raw []byte) (*domain.Payment, error) {
	var (
		booking *domain.Booking
		payment *domain.Payment
		moved   bool
	)

	logger := s.logger.WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"transaction_id": transactionID,
	})

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		booking, err = repos.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		payment, err = repos.Payments.GetByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		// The payment was re-initiated after this transaction id was issued.
		if payment.TransactionID != transactionID {
			return fmt.Errorf("%w: transaction %s superseded", repository.ErrNotFound, transactionID)
		}

		if payment.Status.IsTerminal() {
			if status.IsTerminal() && status != payment.Status {
				logger.WithFields(logrus.Fields{
					"current":  payment.Status,
					"reported": status,
				}).Warn("provider reported a conflicting status for a settled payment")
			}
			return nil
		}

		if len(raw) > 0 {
			payment.RawResponse = raw
		}
		moved = payment.ApplyProviderStatus(status)
		payment.UpdatedAt = s.now()

		if err := repos.Payments.Update(ctx, payment); err != nil {
			return err
		}

		if moved && payment.Status == domain.PaymentStatusCompleted && booking.Status == domain.BookingStatusPending {
			if err := repos.Bookings.UpdateStatus(ctx, booking.ID, domain.BookingStatusConfirmed); err != nil {
				return err
			}
			booking.Status = domain.BookingStatusConfirmed
			booking.UpdatedAt = payment.UpdatedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !moved {
		return payment, nil
	}

	logger = logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})

	switch {
	case payment.Status == domain.PaymentStatusFailed:
		logger.Info("payment failed")
		if s.notificationService != nil {
			_ = s.notificationService.NotifyPaymentFailed(ctx, booking, payment)
		}
	case booking.Status == domain.BookingStatusCancelled:
		logger.Warn("payment completed for a cancelled booking")
		if s.notificationService != nil {
			_ = s.notificationService.NotifyPaymentCompletedAfterCancel(ctx, booking, payment)
		}
	default:
		logger.Info("payment completed")
		if s.notificationService != nil {
			_ = s.notificationService.NotifyPaymentCompleted(ctx, booking, payment)
		}
	}

	return payment, nil
}
