// Package gateway adapts the mobile-money providers behind one interface.
// Provider response shapes and status vocabularies are normalized here so the
// payment service never branches on provider identity.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jelani-tech/minibus-booking-backend/internal/config"
	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// Status is a provider payment status normalized at the adapter boundary.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// PaymentStatus maps a normalized provider status onto the payment lifecycle.
func (s Status) PaymentStatus() domain.PaymentStatus {
	switch s {
	case StatusSuccess:
		return domain.PaymentStatusCompleted
	case StatusFailed:
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}

// InitiateRequest carries the inputs of a payment initiation.
type InitiateRequest struct {
	Amount    decimal.Decimal
	Phone     string
	Reference string
}

// InitiateResult is the normalized answer to a payment initiation.
// PaymentURL is empty for push-based providers.
type InitiateResult struct {
	TransactionID string
	PaymentURL    string
	Status        Status
	Raw           []byte
}

// VerifyResult is the normalized answer to a status poll.
type VerifyResult struct {
	TransactionID string
	Status        Status
	Raw           []byte
}

// Gateway is implemented by every mobile-money provider adapter.
type Gateway interface {
	Method() domain.PaymentMethod
	InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error)
}

// ErrUnsupportedMethod is returned when no adapter is registered for a method.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Error reports a provider failure: a non-success HTTP status, a transport
// error or an unreadable response. Message holds the provider's raw answer.
type Error struct {
	Provider   domain.PaymentMethod
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s gateway error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s gateway error: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s gateway error: %s", e.Provider, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry dispatches to the adapter registered for a payment method.
type Registry struct {
	gateways map[domain.PaymentMethod]Gateway
}

// NewRegistry creates a registry from the given adapters.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[domain.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Method()] = g
	}
	return r
}

// NewProviderRegistry builds the Wave, Orange Money and MTN MoMo adapters.
// Each adapter gets its own breaker so one provider's outage never trips the others.
func NewProviderRegistry(cfg config.GatewayConfig, callbackURL string) *Registry {
	client := func() Doer {
		return NewHTTPClient(cfg.Timeout, cfg.FailureThreshold)
	}
	return NewRegistry(
		NewWave(client(), cfg.Wave, callbackURL),
		NewOrangeMoney(client(), cfg.OrangeMoney, callbackURL),
		NewMTNMomo(client(), cfg.MTNMomo, callbackURL),
	)
}

// Get returns the adapter for method.
func (r *Registry) Get(method domain.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return g, nil
}

// Ensure adapters implement Gateway.
var (
	_ Gateway = (*Wave)(nil)
	_ Gateway = (*OrangeMoney)(nil)
	_ Gateway = (*MTNMomo)(nil)
)
