package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jelani-tech/minibus-booking-backend/internal/config"
	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// Wave talks to the Wave checkout API. Payments are redirect based.
type Wave struct {
	client      Doer
	apiKey      string
	baseURL     string
	callbackURL string
}

// NewWave creates a Wave adapter.
func NewWave(client Doer, cfg config.WaveConfig, callbackURL string) *Wave {
	return &Wave{
		client:      client,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		callbackURL: callbackURL,
	}
}

type waveInitiateRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Phone             string          `json:"phone"`
	MerchantReference string          `json:"merchant_reference"`
	CallbackURL       string          `json:"callback_url"`
}

type wavePayment struct {
	ID         string `json:"id"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

// Method implements Gateway.
func (w *Wave) Method() domain.PaymentMethod {
	return domain.PaymentMethodWave
}

// InitiatePayment creates a Wave payment and returns its checkout URL.
func (w *Wave) InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	httpReq, err := newJSONRequest(http.MethodPost, w.baseURL+"/payments", waveInitiateRequest{
		Amount:            req.Amount,
		Currency:          currencyXOF,
		Phone:             req.Phone,
		MerchantReference: req.Reference,
		CallbackURL:       w.callbackURL,
	})
	if err != nil {
		return nil, &Error{Provider: w.Method(), Err: err}
	}
	w.authorize(httpReq)

	body, err := call(ctx, w.client, w.Method(), httpReq, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var resp wavePayment
	if err := decode(w.Method(), body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &Error{Provider: w.Method(), Message: "missing payment id: " + string(body)}
	}

	return &InitiateResult{
		TransactionID: resp.ID,
		PaymentURL:    resp.PaymentURL,
		Status:        StatusPending,
		Raw:           body,
	}, nil
}

// VerifyPayment fetches the current state of a Wave payment.
func (w *Wave) VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error) {
	httpReq, err := newJSONRequest(http.MethodGet, w.baseURL+"/payments/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, &Error{Provider: w.Method(), Err: err}
	}
	w.authorize(httpReq)

	body, err := call(ctx, w.client, w.Method(), httpReq, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp wavePayment
	if err := decode(w.Method(), body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		resp.ID = transactionID
	}

	return &VerifyResult{
		TransactionID: resp.ID,
		Status:        normalizeStatus(resp.Status),
		Raw:           body,
	}, nil
}

func (w *Wave) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
}
