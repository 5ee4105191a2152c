package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/service/cart"
	"github.com/optiview/eyewear-shop/internal/service/coupon"
)

type CartHTTP struct {
	Svc     *cart.Service
	Coupons *coupon.Service
}

// cartResponse carries the cart plus the opportunistic coupon
// revalidation result: when the client has a coupon applied it sends the
// code along with every mutation, and a code that no longer validates
// comes back dropped with the reason.
type cartResponse struct {
	Cart          *cart.Cart     `json:"cart"`
	Coupon        *coupon.Result `json:"coupon,omitempty"`
	CouponDropped bool           `json:"coupon_dropped,omitempty"`
	CouponError   string         `json:"coupon_error,omitempty"`
}

func (h *CartHTTP) respond(c echo.Context, status int, userID uuid.UUID, crt *cart.Cart, couponCode string) error {
	resp := cartResponse{Cart: crt}
	if couponCode != "" {
		productIDs := make([]uuid.UUID, 0, len(crt.Items))
		for _, it := range crt.Items {
			productIDs = append(productIDs, it.ProductID)
		}
		res, err := h.Coupons.Validate(c.Request().Context(), couponCode, coupon.OrderContext{
			OrderValue: crt.Subtotal,
			ProductIDs: productIDs,
			UserID:     userID,
		})
		var vErr *coupon.ValidationError
		switch {
		case err == nil:
			resp.Coupon = res
		case errors.As(err, &vErr):
			resp.CouponDropped = true
			resp.CouponError = vErr.Message
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}
	return c.JSON(status, resp)
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("get_cart_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	crt, err := h.Svc.Get(ctx, userID)
	if err != nil {
		l.Error("get_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return h.respond(c, http.StatusOK, userID, crt, c.QueryParam("coupon_code"))
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("add_to_cart_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req struct {
		ProductID  uuid.UUID  `json:"product_id"`
		LensID     *uuid.UUID `json:"lens_id,omitempty"`
		Quantity   uint       `json:"quantity"`
		CouponCode string     `json:"coupon_code,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	crt, err := h.Svc.Add(ctx, userID, req.ProductID, req.Quantity, req.LensID)
	if err != nil {
		return h.mapError(l, "add_to_cart_error", err)
	}

	l.Info("cart_item_added", "product_id", req.ProductID)
	return h.respond(c, http.StatusCreated, userID, crt, req.CouponCode)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("update_cart_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req struct {
		ProductID  uuid.UUID `json:"product_id"`
		Quantity   uint      `json:"quantity"`
		CouponCode string    `json:"coupon_code,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_cart_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	crt, err := h.Svc.Update(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		return h.mapError(l, "update_cart_error", err)
	}

	return h.respond(c, http.StatusOK, userID, crt, req.CouponCode)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("remove_cart_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req struct {
		ProductID  uuid.UUID `json:"product_id"`
		CouponCode string    `json:"coupon_code,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("remove_cart_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	crt, err := h.Svc.Remove(ctx, userID, req.ProductID)
	if err != nil {
		return h.mapError(l, "remove_cart_error", err)
	}

	return h.respond(c, http.StatusOK, userID, crt, req.CouponCode)
}

func (h *CartHTTP) Merge(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.merge")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("merge_cart_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req struct {
		Items      []cart.GuestItem `json:"items"`
		CouponCode string           `json:"coupon_code,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("merge_cart_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	crt, err := h.Svc.Merge(ctx, userID, req.Items)
	if err != nil {
		return h.mapError(l, "merge_cart_error", err)
	}

	l.Info("cart_merged", "guest_items", len(req.Items))
	return h.respond(c, http.StatusOK, userID, crt, req.CouponCode)
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	userID, err := userIDFromContext(c)
	if err != nil {
		l.Warn("clear_cart_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Svc.Clear(ctx, userID); err != nil {
		l.Error("clear_cart_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("cart_cleared")
	return c.JSON(http.StatusOK, map[string]any{"cleared": true})
}

func (h *CartHTTP) mapError(l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, cart.ErrValidation):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrNotFound):
		l.Warn(event, "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
