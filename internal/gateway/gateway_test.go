package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	var got createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createOrderResponse{ID: "gw_order_abc"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key_id", "key_secret", "whsec")

	id, err := c.CreateOrder(context.Background(), 154.99, "INR", "receipt-1")
	require.NoError(t, err)
	assert.Equal(t, "gw_order_abc", id)

	assert.EqualValues(t, 15499, got.Amount, "amount travels in minor units")
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, "receipt-1", got.Receipt)
}

func TestCreateOrder_Errors(t *testing.T) {
	t.Run("provider error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad auth", http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, "k", "s", "w")
		_, err := c.CreateOrder(context.Background(), 100, "INR", "r")
		assert.Error(t, err)
	})

	t.Run("empty order id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(createOrderResponse{})
		}))
		defer srv.Close()

		c := NewHTTPClient(srv.URL, "k", "s", "w")
		_, err := c.CreateOrder(context.Background(), 100, "INR", "r")
		assert.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		c := NewHTTPClient("http://127.0.0.1:1", "k", "s", "w")
		_, err := c.CreateOrder(context.Background(), 100, "INR", "r")
		assert.Error(t, err)
	})
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := NewHTTPClient("", "key_id", "key_secret", "whsec")

	sig := signHex([]byte("key_secret"), []byte("gw_order_1|pay_1"))
	assert.True(t, c.VerifyPaymentSignature("gw_order_1", "pay_1", sig))

	assert.False(t, c.VerifyPaymentSignature("gw_order_1", "pay_2", sig))
	assert.False(t, c.VerifyPaymentSignature("gw_order_1", "pay_1", "forged"))
	assert.False(t, c.VerifyPaymentSignature("gw_order_1", "pay_1", ""))

	// Signed with the wrong secret.
	wrong := signHex([]byte("other_secret"), []byte("gw_order_1|pay_1"))
	assert.False(t, c.VerifyPaymentSignature("gw_order_1", "pay_1", wrong))
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := NewHTTPClient("", "key_id", "key_secret", "whsec")
	body := []byte(`{"event":"payment.captured"}`)

	sig := signHex([]byte("whsec"), body)
	assert.True(t, c.VerifyWebhookSignature(body, sig))

	assert.False(t, c.VerifyWebhookSignature([]byte(`{"event":"tampered"}`), sig))
	assert.False(t, c.VerifyWebhookSignature(body, "forged"))

	// The payment-key secret must not validate webhooks.
	keySig := signHex([]byte("key_secret"), body)
	assert.False(t, c.VerifyWebhookSignature(body, keySig))
}
