package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/service/checkout"
	"github.com/optiview/eyewear-shop/internal/service/coupon"
)

// SignatureHeader carries the provider's webhook HMAC.
const SignatureHeader = "X-Signature"

type CheckoutHTTP struct {
	Svc *checkout.Service

	// Flat shipping charge and GST percentage applied to every order.
	Shipping float64
	GSTRate  float64
}

func (h *CheckoutHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.create")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("create_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req checkout.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Shipping = h.Shipping
	req.GSTRate = h.GSTRate

	res, err := h.Svc.CreateOrder(ctx, userID, req)
	if err != nil {
		var vErr *coupon.ValidationError
		switch {
		case errors.As(err, &vErr):
			l.Warn("create_order_error", "status", 400, "reason", string(vErr.Reason))
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Message)
		case errors.Is(err, checkout.ErrValidation), errors.Is(err, checkout.ErrStock):
			l.Warn("create_order_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, checkout.ErrNotFound):
			l.Warn("create_order_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, checkout.ErrGateway):
			l.Error("create_order_error", "status", 502, "error", err)
			return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
		default:
			l.Error("create_order_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("order_created", "order_id", res.Order.ID, "amount", res.Order.FinalAmount)
	return c.JSON(http.StatusCreated, map[string]any{
		"order_id": res.Order.ID,
		"gateway":  res.Gateway,
	})
}

func (h *CheckoutHTTP) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.verify")

	if _, err := userIDFromContext(c); err != nil {
		l.Warn("verify_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req checkout.VerifyInput
	if err := c.Bind(&req); err != nil {
		l.Warn("verify_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.VerifyPayment(ctx, req); err != nil {
		switch {
		case errors.Is(err, checkout.ErrBadSignature), errors.Is(err, checkout.ErrValidation):
			l.Warn("verify_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, checkout.ErrNotFound):
			l.Warn("verify_error", "status", 404, "error", err)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		default:
			l.Error("verify_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("payment_verified", "order_id", req.OrderID)
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// Webhook handles provider notifications. Signature failures are the
// only 400; anything after a verified signature is acknowledged with 200
// so the provider does not retry-loop on cases needing manual follow-up.
func (h *CheckoutHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.webhook")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		l.Warn("webhook_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	if err := h.Svc.HandleWebhook(ctx, body, c.Request().Header.Get(SignatureHeader)); err != nil {
		if errors.Is(err, checkout.ErrBadSignature) {
			l.Warn("webhook_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "signature mismatch")
		}
		l.Error("webhook_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (h *CheckoutHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.get_order")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("get_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	order, err := h.Svc.GetOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, checkout.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("get_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, order)
}

func (h *CheckoutHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.list_orders")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("list_orders_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	limit := parseIntDefault(c.QueryParam("limit"), 20)
	offset := parseIntDefault(c.QueryParam("offset"), 0)

	orders, err := h.Svc.ListOrders(ctx, userID, limit, offset)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, orders)
}
