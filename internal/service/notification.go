package service

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// EventType names a domain event. It doubles as the publish topic.
type EventType string

const (
	EventBookingReserved             EventType = "booking.reserved"
	EventBookingCancelled            EventType = "booking.cancelled"
	EventPaymentInitiated            EventType = "payment.initiated"
	EventPaymentCompleted            EventType = "payment.completed"
	EventPaymentFailed               EventType = "payment.failed"
	EventPaymentCompletedAfterCancel EventType = "payment.completed_after_cancel"
)

// Event is the JSON payload published for every booking or payment transition.
type Event struct {
	ID            string               `json:"id"`
	Type          EventType            `json:"type"`
	BookingID     string               `json:"booking_id"`
	UserID        string               `json:"user_id,omitempty"`
	TripID        string               `json:"trip_id,omitempty"`
	PaymentID     string               `json:"payment_id,omitempty"`
	Seats         int                  `json:"seats,omitempty"`
	Amount        *decimal.Decimal     `json:"amount,omitempty"`
	Method        domain.PaymentMethod `json:"payment_method,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
	Status        string               `json:"status"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// NotificationService publishes domain events for downstream consumers
// (rider notifications, refunds, reporting).
type NotificationService struct {
	publisher message.Publisher
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher message.Publisher, logger logrus.FieldLogger) *NotificationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// NotifyBookingReserved announces a new pending booking.
func (s *NotificationService) NotifyBookingReserved(ctx context.Context, booking *domain.Booking) error {
	return s.publish(ctx, bookingEvent(EventBookingReserved, booking))
}

// NotifyBookingCancelled announces a cancellation and the seats returned to the trip.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, booking *domain.Booking) error {
	return s.publish(ctx, bookingEvent(EventBookingCancelled, booking))
}

// NotifyPaymentInitiated announces a new payment attempt.
func (s *NotificationService) NotifyPaymentInitiated(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	return s.publish(ctx, paymentEvent(EventPaymentInitiated, booking, payment))
}

// NotifyPaymentCompleted announces a settled payment and the confirmed booking.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	return s.publish(ctx, paymentEvent(EventPaymentCompleted, booking, payment))
}

// NotifyPaymentFailed announces a failed payment. The booking stays payable.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	return s.publish(ctx, paymentEvent(EventPaymentFailed, booking, payment))
}

// NotifyPaymentCompletedAfterCancel flags money received for a cancelled booking so it can be refunded.
func (s *NotificationService) NotifyPaymentCompletedAfterCancel(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	return s.publish(ctx, paymentEvent(EventPaymentCompletedAfterCancel, booking, payment))
}

func bookingEvent(eventType EventType, booking *domain.Booking) Event {
	amount := booking.TotalPrice
	return Event{
		Type:      eventType,
		BookingID: booking.ID,
		UserID:    booking.UserID,
		TripID:    booking.TripID,
		Seats:     booking.NumberOfSeats,
		Amount:    &amount,
		Status:    string(booking.Status),
	}
}

func paymentEvent(eventType EventType, booking *domain.Booking, payment *domain.Payment) Event {
	amount := payment.Amount
	return Event{
		Type:          eventType,
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		TripID:        booking.TripID,
		PaymentID:     payment.ID,
		Amount:        &amount,
		Method:        payment.Method,
		TransactionID: payment.TransactionID,
		Status:        string(payment.Status),
	}
}

// publish delivers an event. Failures are logged and returned; callers do not
// fail the request over them.
func (s *NotificationService) publish(ctx context.Context, event Event) error {
	event.ID = watermill.NewUUID()
	event.OccurredAt = s.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.SetContext(ctx)

	if err := s.publisher.Publish(string(event.Type), msg); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"booking_id": event.BookingID,
		}).Error("failed to publish event")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"booking_id": event.BookingID,
		"payment_id": event.PaymentID,
	}).Debug("event published")

	return nil
}
