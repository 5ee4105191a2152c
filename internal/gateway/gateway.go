// Package gateway wraps the external payment provider. It is the only
// code that holds the signing secrets.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Client is what the checkout pipeline needs from the provider: a way to
// create a payment intent and a way to check callback signatures. Both
// signature checks are deterministic and side-effect free.
type Client interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

type HTTPClient struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	http          *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, keyID, keySecret, webhookSecret string) *HTTPClient {
	return &HTTPClient{
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers a payment intent with the provider and returns
// the provider-side order id. Amount is converted to minor units.
func (c *HTTPClient) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error) {
	payload, err := json.Marshal(createOrderRequest{
		Amount:   int64(math.Round(amount * 100)),
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return "", fmt.Errorf("gateway: marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: create order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("gateway: create order: unexpected status %d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gateway: decode order response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("gateway: create order: empty order id")
	}
	return out.ID, nil
}

// VerifyPaymentSignature checks the client-callback signature computed
// over "<gatewayOrderID>|<gatewayPaymentID>" with the API key secret.
func (c *HTTPClient) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := signHex([]byte(c.keySecret), []byte(gatewayOrderID+"|"+gatewayPaymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the webhook signature computed over the
// raw request body with the webhook secret.
func (c *HTTPClient) VerifyWebhookSignature(body []byte, signature string) bool {
	expected := signHex([]byte(c.webhookSecret), body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func signHex(secret, msg []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}
