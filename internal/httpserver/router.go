package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/middleware"
)

type Deps struct {
	Cart     *CartHTTP
	Checkout *CheckoutHTTP
	Coupon   *CouponHTTP
	Auth     *middleware.Auth
	Logger   *slog.Logger
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	if d.Logger != nil {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				req := c.Request()
				ctx := logging.IntoContext(req.Context(), d.Logger)
				c.SetRequest(req.WithContext(ctx))
				return next(c)
			}
		})
	}

	v1 := e.Group("/api/v1")

	v1.POST("/coupons/apply", d.Coupon.Apply)

	cart := v1.Group("/cart", d.Auth.RequireAuth)
	cart.GET("", d.Cart.GetCart)
	cart.POST("", d.Cart.AddToCart)
	cart.PATCH("/items", d.Cart.UpdateItem)
	cart.DELETE("/items", d.Cart.RemoveItem)
	cart.POST("/merge", d.Cart.Merge)
	cart.DELETE("", d.Cart.ClearCart)

	checkout := v1.Group("/checkout")
	checkout.POST("/create", d.Checkout.Create, d.Auth.RequireAuth)
	checkout.POST("/verify", d.Checkout.Verify, d.Auth.RequireAuth)
	checkout.POST("/webhook", d.Checkout.Webhook)

	orders := v1.Group("/orders", d.Auth.RequireAuth)
	orders.GET("", d.Checkout.ListOrders)
	orders.GET("/:id", d.Checkout.GetOrder)

	admin := v1.Group("/admin", d.Auth.RequireAdmin)
	admin.POST("/coupons", d.Coupon.CreateCoupon)
	admin.GET("/coupons", d.Coupon.ListCoupons)
	admin.GET("/coupons/:id", d.Coupon.GetCoupon)
	admin.PATCH("/coupons/:id", d.Coupon.UpdateCoupon)
	admin.DELETE("/coupons/:id", d.Coupon.DeleteCoupon)
}
