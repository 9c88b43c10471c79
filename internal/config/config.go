package config

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides application configuration. Load fails fx startup when the
// warehouse destination is not configured.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewTuningHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Port        string

	OTLPEndpoint string

	// Shared secret for webhook signature verification. Empty means insecure
	// mode: every payload is accepted and a warning is logged.
	WebhookSecret string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	OrdersTable        string
	OrderProductsTable string

	RateLimit RateLimitConfig
}

// RateLimitConfig configures the optional redis-backed webhook limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Rate          float64
	Burst         int
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "orderlake"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		Port:          getenv("PORT", "8080"),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),
		WebhookSecret: strings.TrimSpace(getenv("WEBHOOK_SECRET", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", ""),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", ""),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		OrdersTable:        getenv("ORDERS_TABLE", "orders"),
		OrderProductsTable: getenv("ORDER_PRODUCTS_TABLE", "order_products"),

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("REDIS_DB", 0),
			Rate:          getenvFloat("RATE_LIMIT_RATE", 20),
			Burst:         getenvInt("RATE_LIMIT_BURST", 40),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a usable warehouse
// destination. Missing secrets are allowed; missing destinations are not.
func (c Config) Validate() error {
	if c.DBType != "sqlite" && strings.TrimSpace(c.DBHost) == "" {
		return errors.New("config: DATABASE_HOST is required")
	}
	if strings.TrimSpace(c.DBName) == "" {
		return errors.New("config: DATABASE_NAME is required")
	}
	if !tableNamePattern.MatchString(c.OrdersTable) {
		return errors.New("config: ORDERS_TABLE is not a valid table identifier")
	}
	if !tableNamePattern.MatchString(c.OrderProductsTable) {
		return errors.New("config: ORDER_PRODUCTS_TABLE is not a valid table identifier")
	}
	if c.RateLimit.Enabled && c.RateLimit.RedisAddr == "" {
		return errors.New("config: REDIS_ADDR is required when rate limiting is enabled")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
