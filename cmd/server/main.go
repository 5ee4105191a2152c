package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/optiview/eyewear-shop/internal/cache"
	rediscache "github.com/optiview/eyewear-shop/internal/cache/redis"
	"github.com/optiview/eyewear-shop/internal/config"
	"github.com/optiview/eyewear-shop/internal/events"
	"github.com/optiview/eyewear-shop/internal/gateway"
	"github.com/optiview/eyewear-shop/internal/httpserver"
	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/mail"
	"github.com/optiview/eyewear-shop/internal/middleware"
	"github.com/optiview/eyewear-shop/internal/repo"
	"github.com/optiview/eyewear-shop/internal/service/cart"
	"github.com/optiview/eyewear-shop/internal/service/checkout"
	"github.com/optiview/eyewear-shop/internal/service/coupon"
	"github.com/optiview/eyewear-shop/internal/users"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	e := echo.New()
	e.HideBanner = true

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}

	// Redis is the advisory tier: if it is down at boot the cart store
	// runs durable-only rather than refusing to start.
	var cartCache cache.Cache
	if redisClient, err := config.InitRedis(initCtx, cfg); err != nil {
		logger.Warn("redis unavailable, cart cache disabled", "error", err)
	} else {
		cartCache = rediscache.NewRedisCache(redisClient, "shop")
	}
	cancel()

	repository := repo.New(db)

	couponSvc := &coupon.Service{Repo: repository}
	cartSvc := &cart.Service{Repo: repository, Cache: cartCache}

	gatewayClient := gateway.NewHTTPClient(
		cfg.GatewayBaseURL,
		cfg.GatewayKeyID,
		cfg.GatewayKeySecret,
		cfg.GatewayWebhookSecret,
	)

	var mailer mail.Mailer = mail.NoopMailer{}
	if cfg.SendgridAPIKey != "" {
		mailer = mail.NewSendgridMailer(cfg.SendgridAPIKey, cfg.MailFrom)
	}

	producer := events.NewProducer(cfg.KafkaAddress, cfg.KafkaTopic)
	defer producer.Close()

	checkoutSvc := &checkout.Service{
		Repo:     repository,
		Coupons:  couponSvc,
		Gateway:  gatewayClient,
		Cache:    cartCache,
		Mailer:   mailer,
		Producer: producer,
		Users:    users.NewClient(os.Getenv("AUTH_URL")),
		Currency: "INR",
	}

	authMW := middleware.NewAuth(cfg.JWTSecret)

	httpserver.Register(e, &httpserver.Deps{
		Cart:     &httpserver.CartHTTP{Svc: cartSvc, Coupons: couponSvc},
		Checkout: &httpserver.CheckoutHTTP{
			Svc:      checkoutSvc,
			Shipping: cfg.ShippingFlat,
			GSTRate:  cfg.GSTRate,
		},
		Coupon:   &httpserver.CouponHTTP{Svc: couponSvc},
		Auth:     authMW,
		Logger:   logger,
	})

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("server stopped")
}
