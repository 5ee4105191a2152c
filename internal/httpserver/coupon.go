package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/models"
	"github.com/optiview/eyewear-shop/internal/service/coupon"
)

type CouponHTTP struct {
	Svc *coupon.Service
}

// Apply validates a code against the caller's order context. The user id
// is taken from the session when present; anonymous validation skips the
// per-user limit check.
func (h *CouponHTTP) Apply(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.apply")

	var req struct {
		Code       string      `json:"code"`
		OrderValue float64     `json:"order_value"`
		ProductIDs []uuid.UUID `json:"product_ids"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("apply_coupon_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code required")
	}

	userID, _ := userIDFromContext(c)

	res, err := h.Svc.Validate(ctx, req.Code, coupon.OrderContext{
		OrderValue: req.OrderValue,
		ProductIDs: req.ProductIDs,
		UserID:     userID,
	})
	if err != nil {
		var vErr *coupon.ValidationError
		if errors.As(err, &vErr) {
			l.Info("coupon_rejected", "code", req.Code, "reason", string(vErr.Reason))
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Message)
		}
		l.Error("apply_coupon_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, res)
}

func (h *CouponHTTP) CreateCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.create")

	var req models.Coupon
	if err := c.Bind(&req); err != nil {
		l.Warn("create_coupon_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.ID = uuid.Nil

	if err := h.Svc.Create(ctx, &req); err != nil {
		return h.mapError(l, "create_coupon_error", err)
	}

	l.Info("coupon_created", "code", req.Code)
	return c.JSON(http.StatusCreated, req)
}

func (h *CouponHTTP) UpdateCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.update")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coupon id")
	}

	var req models.Coupon
	if err := c.Bind(&req); err != nil {
		l.Warn("update_coupon_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.ID = id

	if err := h.Svc.Update(ctx, &req); err != nil {
		return h.mapError(l, "update_coupon_error", err)
	}

	return c.JSON(http.StatusOK, req)
}

func (h *CouponHTTP) GetCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.get")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coupon id")
	}

	res, err := h.Svc.Get(ctx, id)
	if err != nil {
		return h.mapError(l, "get_coupon_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CouponHTTP) ListCoupons(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.list")

	limit := parseIntDefault(c.QueryParam("limit"), 20)
	offset := parseIntDefault(c.QueryParam("offset"), 0)

	res, err := h.Svc.List(ctx, limit, offset)
	if err != nil {
		return h.mapError(l, "list_coupons_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

// DeleteCoupon removes an unreferenced coupon; one referenced by an
// order is deactivated instead.
func (h *CouponHTTP) DeleteCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coupon id")
	}

	if err := h.Svc.Remove(ctx, id); err != nil {
		return h.mapError(l, "delete_coupon_error", err)
	}

	l.Info("coupon_removed", "coupon_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CouponHTTP) mapError(l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, coupon.ErrValidation):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, coupon.ErrNotFound):
		l.Warn(event, "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
