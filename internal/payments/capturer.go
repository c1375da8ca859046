// Package payments is the boundary to the payment processor. The core only
// ever captures a previously created payment intent, and only on the
// active → resolved transition; intent creation and refunds live upstream.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	dErrors "celebrate/pkg/domain-errors"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPCapturer captures charges through the processor's REST API.
type HTTPCapturer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures the HTTPCapturer.
type Option func(*HTTPCapturer)

// WithTimeout bounds each capture request.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPCapturer) { c.client.Timeout = d }
}

// WithHTTPClient replaces the underlying client (tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPCapturer) { c.client = client }
}

func NewHTTPCapturer(baseURL, apiKey string, opts ...Option) (*HTTPCapturer, error) {
	if baseURL == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payment API base URL is required")
	}
	c := &HTTPCapturer{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Capture executes the charge held by paymentIntent. The returned charge ID
// is recorded on the celebration; a capture error must abort the resolving
// transition.
func (c *HTTPCapturer) Capture(ctx context.Context, paymentIntent string, amountCents int64) (string, error) {
	if paymentIntent == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "payment intent is required")
	}

	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s/capture", c.baseURL, url.PathEscape(paymentIntent))
	body := strings.NewReader(url.Values{
		"amount_to_capture": {fmt.Sprintf("%d", amountCents)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build capture request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "payment processor unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", dErrors.Newf(dErrors.CodeUnavailable, "payment capture failed with status %d", resp.StatusCode)
	}

	var payload struct {
		LatestCharge string `json:"latest_charge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "decode capture response")
	}
	if payload.LatestCharge == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "capture response missing charge id")
	}
	return payload.LatestCharge, nil
}
