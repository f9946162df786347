package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jelani-tech/minibus-booking-backend/internal/config"
	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

const (
	mtnCountryCode = "225"

	// tokenExpiryMargin renews the access token before the provider expires it.
	tokenExpiryMargin = time.Minute
)

// MTNMomo talks to the MTN Mobile Money collection API. Payments are push
// based: the payer approves on their handset and no payment URL is returned.
type MTNMomo struct {
	client            Doer
	apiKey            string
	subscriptionKey   string
	baseURL           string
	targetEnvironment string
	callbackURL       string

	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewMTNMomo creates an MTN MoMo adapter.
func NewMTNMomo(client Doer, cfg config.MTNMomoConfig, callbackURL string) *MTNMomo {
	return &MTNMomo{
		client:            client,
		apiKey:            cfg.APIKey,
		subscriptionKey:   cfg.SubscriptionKey,
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		targetEnvironment: cfg.TargetEnvironment,
		callbackURL:       callbackURL,
		now:               time.Now,
		newID:             func() string { return uuid.New().String() },
	}
}

type mtnTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type mtnParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mtnRequestToPay struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        mtnParty `json:"payer"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
}

type mtnRequestToPayStatus struct {
	Status                 string `json:"status"`
	FinancialTransactionID string `json:"financialTransactionId"`
	ExternalID             string `json:"externalId"`
}

// Method implements Gateway.
func (m *MTNMomo) Method() domain.PaymentMethod {
	return domain.PaymentMethodMTNMomo
}

// InitiatePayment sends a request-to-pay. The generated X-Reference-Id is the
// transaction id the provider reports back.
func (m *MTNMomo) InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	token, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	referenceID := m.newID()

	httpReq, err := newJSONRequest(http.MethodPost, m.baseURL+"/collection/v1_0/requesttopay", mtnRequestToPay{
		Amount:     req.Amount.String(),
		Currency:   currencyXOF,
		ExternalID: req.Reference,
		Payer: mtnParty{
			PartyIDType: "MSISDN",
			PartyID:     NormalizeMSISDN(req.Phone),
		},
		PayerMessage: "Payment for booking " + req.Reference,
		PayeeNote:    "Minibus booking payment",
	})
	if err != nil {
		return nil, &Error{Provider: m.Method(), Err: err}
	}
	m.authorize(httpReq, token)
	httpReq.Header.Set("X-Reference-Id", referenceID)
	httpReq.Header.Set("X-Callback-Url", m.callbackURL)

	if _, err := call(ctx, m.client, m.Method(), httpReq, http.StatusAccepted); err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(map[string]string{
		"reference_id": referenceID,
		"external_id":  req.Reference,
		"status":       string(StatusPending),
	})

	return &InitiateResult{
		TransactionID: referenceID,
		Status:        StatusPending,
		Raw:           raw,
	}, nil
}

// VerifyPayment fetches the state of a request-to-pay.
func (m *MTNMomo) VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error) {
	token, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := newJSONRequest(http.MethodGet, m.baseURL+"/collection/v1_0/requesttopay/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, &Error{Provider: m.Method(), Err: err}
	}
	m.authorize(httpReq, token)

	body, err := call(ctx, m.client, m.Method(), httpReq, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp mtnRequestToPayStatus
	if err := decode(m.Method(), body, &resp); err != nil {
		return nil, err
	}

	return &VerifyResult{
		TransactionID: transactionID,
		Status:        normalizeStatus(resp.Status),
		Raw:           body,
	}, nil
}

// accessToken returns a cached token or fetches a new one with basic auth.
func (m *MTNMomo) accessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	httpReq, err := newJSONRequest(http.MethodPost, m.baseURL+"/collection/token/", nil)
	if err != nil {
		return "", &Error{Provider: m.Method(), Err: err}
	}
	httpReq.SetBasicAuth(m.apiKey, "")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", m.subscriptionKey)

	body, err := call(ctx, m.client, m.Method(), httpReq, http.StatusOK)
	if err != nil {
		return "", err
	}

	var resp mtnTokenResponse
	if err := decode(m.Method(), body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &Error{Provider: m.Method(), Message: "missing access token: " + string(body)}
	}

	m.token = resp.AccessToken
	m.tokenExpiry = m.now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenExpiryMargin)

	return m.token, nil
}

func (m *MTNMomo) authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ocp-Apim-Subscription-Key", m.subscriptionKey)
	req.Header.Set("X-Target-Environment", m.targetEnvironment)
}

// NormalizeMSISDN strips formatting from a phone number and prefixes the
// Côte d'Ivoire country code when it is missing.
func NormalizeMSISDN(phone string) string {
	msisdn := strings.NewReplacer("+", "", " ", "", "-", "").Replace(phone)
	if !strings.HasPrefix(msisdn, mtnCountryCode) {
		msisdn = mtnCountryCode + msisdn
	}
	return msisdn
}
