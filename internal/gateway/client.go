package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/newrelic/go-agent/v3/newrelic"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 30 * time.Second

// Doer sends HTTP requests. It is satisfied by *http.Client and *circuit.HTTPClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a provider client that trips its breaker after
// threshold consecutive failures.
func NewHTTPClient(timeout time.Duration, threshold int64) *circuit.HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return circuit.NewHTTPClient(timeout, threshold, &http.Client{Timeout: timeout})
}

// maxBodySize caps how much of a provider response is read.
const maxBodySize = 1 << 20

// call sends req and returns the body when the response status is one of want.
// Any other outcome is reported as an *Error.
func call(ctx context.Context, doer Doer, provider domain.PaymentMethod, req *http.Request, want ...int) ([]byte, error) {
	req = req.WithContext(ctx)

	var segment *newrelic.ExternalSegment
	if txn := newrelic.FromContext(ctx); txn != nil {
		segment = newrelic.StartExternalSegment(txn, req)
		defer segment.End()
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, &Error{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if segment != nil {
		segment.Response = resp
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Provider: provider, StatusCode: resp.StatusCode, Err: err}
	}

	if !slices.Contains(want, resp.StatusCode) {
		return nil, &Error{Provider: provider, StatusCode: resp.StatusCode, Message: string(body)}
	}

	return body, nil
}

func newJSONRequest(method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func decode(provider domain.PaymentMethod, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{Provider: provider, Message: string(body), Err: err}
	}
	return nil
}
