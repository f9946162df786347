package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether the status can no longer be changed by the provider.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentMethod identifies the mobile-money provider used for a payment.
type PaymentMethod string

const (
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodMTNMomo     PaymentMethod = "mtn_momo"
)

// PaymentMethods lists every supported payment method.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodWave, PaymentMethodOrangeMoney, PaymentMethodMTNMomo}
}

// ParsePaymentMethod converts a raw method name into a PaymentMethod.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case PaymentMethodWave, PaymentMethodOrangeMoney, PaymentMethodMTNMomo:
		return m, true
	}
	return "", false
}

// ParseProviderStatus maps a webhook status onto a terminal PaymentStatus.
// ok is false for anything outside the completed/failed vocabulary.
func ParseProviderStatus(raw string) (status PaymentStatus, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "success", "paid":
		return PaymentStatusCompleted, true
	case "failed", "cancelled", "error":
		return PaymentStatusFailed, true
	}
	return "", false
}

// Payment is the settlement attempt for a booking. There is at most one per booking.
type Payment struct {
	ID            string
	BookingID     string
	Amount        decimal.Decimal
	Method        PaymentMethod
	TransactionID string
	Status        PaymentStatus
	RawResponse   []byte
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ApplyProviderStatus moves a pending payment to the given status.
// Terminal payments never change; it returns true when the status moved.
func (p *Payment) ApplyProviderStatus(status PaymentStatus) bool {
	if p.Status.IsTerminal() || status == PaymentStatusPending || status == p.Status {
		return false
	}
	p.Status = status
	return true
}

// MerchantReference builds the reference sent to the provider for one initiation attempt.
func MerchantReference(bookingID, paymentID string, attempt int) string {
	return fmt.Sprintf("MB-%s-%s-%d", bookingID, paymentID, attempt)
}
