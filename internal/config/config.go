package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/models"
)

type Config struct {
	ServerPort string
	LogLevel   string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret []byte

	GatewayBaseURL       string
	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string

	KafkaAddress string
	KafkaTopic   string

	SendgridAPIKey string
	MailFrom       string

	ShippingFlat float64
	GSTRate      float64
}

func must(v string, name string) string {
	if v == "" {
		log.Fatalf("missing required env %s", name)
	}
	return v
}

func envDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envFloat(name string, def float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	redisDB, _ := strconv.Atoi(envDefault("REDIS_DB", "0"))

	return &Config{
		ServerPort: envDefault("SERVER_PORT", "8080"),
		LogLevel:   envDefault("LOG_LEVEL", "info"),

		DatabaseURL: must(os.Getenv("DATABASE_URL"), "DATABASE_URL"),

		RedisAddr:     envDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		JWTSecret: []byte(must(os.Getenv("JWT_HS256_SECRET"), "JWT_HS256_SECRET")),

		GatewayBaseURL:       envDefault("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		GatewayKeyID:         must(os.Getenv("GATEWAY_KEY_ID"), "GATEWAY_KEY_ID"),
		GatewayKeySecret:     must(os.Getenv("GATEWAY_KEY_SECRET"), "GATEWAY_KEY_SECRET"),
		GatewayWebhookSecret: must(os.Getenv("GATEWAY_WEBHOOK_SECRET"), "GATEWAY_WEBHOOK_SECRET"),

		KafkaAddress: envDefault("KAFKA_ADDRESS", "localhost:9092"),
		KafkaTopic:   envDefault("KAFKA_ORDER_TOPIC", "order_events"),

		SendgridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		MailFrom:       envDefault("MAIL_FROM", "orders@optiview.example"),

		ShippingFlat: envFloat("SHIPPING_FLAT", 0),
		GSTRate:      envFloat("GST_RATE", 18),
	}
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func InitDB(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	configurePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Product{},
		&models.Lens{},
		&models.Address{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Coupon{},
		&models.CouponProduct{},
		&models.RedeemedCoupon{},
	); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	return db, nil
}

func InitRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
