package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
	"github.com/optiview/eyewear-shop/internal/repo"
	"github.com/optiview/eyewear-shop/internal/service/checkout"
)

type staticSigGateway struct{ accept string }

func (g staticSigGateway) CreateOrder(context.Context, float64, string, string) (string, error) {
	return "gw_order_1", nil
}
func (g staticSigGateway) VerifyPaymentSignature(_, _, sig string) bool { return sig == g.accept }
func (g staticSigGateway) VerifyWebhookSignature(_ []byte, sig string) bool {
	return sig == g.accept
}

func newWebhookHandler(t *testing.T) *CheckoutHTTP {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
		&models.Product{}, &models.CartItem{}, &models.RedeemedCoupon{},
	))

	return &CheckoutHTTP{Svc: &checkout.Service{
		Repo:    repo.New(db),
		Gateway: staticSigGateway{accept: "valid"},
	}}
}

func postWebhook(h *CheckoutHTTP, body, signature string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	return rec, h.Webhook(e.NewContext(req, rec))
}

func TestWebhook_BadSignature(t *testing.T) {
	h := newWebhookHandler(t)

	_, err := postWebhook(h, `{"event":"payment.captured"}`, "forged")
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)

	_, err = postWebhook(h, `{"event":"payment.captured"}`, "")
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestWebhook_AcknowledgesAfterValidSignature(t *testing.T) {
	h := newWebhookHandler(t)

	// Unknown gateway order: logged as an orphan, still acknowledged so
	// the provider stops retrying.
	rec, err := postWebhook(h,
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"gw_unknown"}}}}`,
		"valid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	// Malformed body after a valid signature is also acknowledged.
	rec, err = postWebhook(h, `{truncated`, "valid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, err = postWebhook(h, `{"event":"payment.authorized"}`, "valid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
