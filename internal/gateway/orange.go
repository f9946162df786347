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

const currencyXOF = "XOF"

// OrangeMoney talks to the Orange Money web payment API. Payments are redirect based.
type OrangeMoney struct {
	client      Doer
	apiKey      string
	merchantID  string
	baseURL     string
	callbackURL string
}

// NewOrangeMoney creates an Orange Money adapter.
func NewOrangeMoney(client Doer, cfg config.OrangeMoneyConfig, callbackURL string) *OrangeMoney {
	return &OrangeMoney{
		client:      client,
		apiKey:      cfg.APIKey,
		merchantID:  cfg.MerchantID,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		callbackURL: callbackURL,
	}
}

type orangeInitiateRequest struct {
	MerchantKey string          `json:"merchant_key"`
	Currency    string          `json:"currency"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	ReturnURL   string          `json:"return_url"`
	CancelURL   string          `json:"cancel_url"`
	NotifURL    string          `json:"notif_url"`
	Lang        string          `json:"lang"`
	Reference   string          `json:"reference"`
}

type orangeInitiateResponse struct {
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
}

type orangeStatusResponse struct {
	Status string `json:"status"`
}

// Method implements Gateway.
func (o *OrangeMoney) Method() domain.PaymentMethod {
	return domain.PaymentMethodOrangeMoney
}

// InitiatePayment opens a web payment session. The pay token becomes the
// transaction id, falling back to the merchant reference.
func (o *OrangeMoney) InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	httpReq, err := newJSONRequest(http.MethodPost, o.baseURL+"/ci/v1/webpayment", orangeInitiateRequest{
		MerchantKey: o.merchantID,
		Currency:    currencyXOF,
		OrderID:     req.Reference,
		Amount:      req.Amount,
		ReturnURL:   o.callbackURL,
		CancelURL:   o.callbackURL,
		NotifURL:    o.callbackURL,
		Lang:        "fr",
		Reference:   req.Reference,
	})
	if err != nil {
		return nil, &Error{Provider: o.Method(), Err: err}
	}
	httpReq.SetBasicAuth(o.merchantID, o.apiKey)

	body, err := call(ctx, o.client, o.Method(), httpReq, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var resp orangeInitiateResponse
	if err := decode(o.Method(), body, &resp); err != nil {
		return nil, err
	}

	transactionID := resp.PayToken
	if transactionID == "" {
		transactionID = req.Reference
	}

	return &InitiateResult{
		TransactionID: transactionID,
		PaymentURL:    resp.PaymentURL,
		Status:        StatusPending,
		Raw:           body,
	}, nil
}

// VerifyPayment polls the transaction status endpoint.
func (o *OrangeMoney) VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error) {
	endpoint := o.baseURL + "/ci/v1/transactionstatus?" + url.Values{"order_id": {transactionID}}.Encode()

	httpReq, err := newJSONRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Provider: o.Method(), Err: err}
	}
	httpReq.SetBasicAuth(o.merchantID, o.apiKey)

	body, err := call(ctx, o.client, o.Method(), httpReq, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp orangeStatusResponse
	if err := decode(o.Method(), body, &resp); err != nil {
		return nil, err
	}

	return &VerifyResult{
		TransactionID: transactionID,
		Status:        normalizeStatus(resp.Status),
		Raw:           body,
	}, nil
}
