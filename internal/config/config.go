package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultAppName          = "GrainDesk"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultMaxRequestAmount = "10000000"
	defaultCurrency         = "UGX"
	defaultCreateRateLimit  = 10
	defaultAMQPExchange     = "wallet_events"
	defaultMongoDatabase    = "graindesk_audit"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"

	// GatewayMock settles every payment method with a synthetic reference.
	GatewayMock = "mock"
	// GatewayDisabled fails closed for methods that need a live integration.
	GatewayDisabled = "disabled"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName          string
	AppEnv           string
	Port             string
	LogLevel         string
	DatabaseURL      string
	RedisURL         string
	ShutdownPeriod   time.Duration
	IdempotencyTTL   time.Duration
	MaxRequestAmount decimal.Decimal
	OpeningBalance   decimal.Decimal
	Currency         string
	PaymentGateway   string
	CreateRateLimit  int
	EventSinks       []string
	AMQPURL          string
	AMQPExchange     string
	MongoURI         string
	MongoDatabase    string
	DevAdminID       string
	BootstrapAdminID string
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
		Currency:         strings.ToUpper(getEnv("APP_WALLET_CURRENCY", defaultCurrency)),
		CreateRateLimit:  defaultCreateRateLimit,
		EventSinks:       splitList(getEnv("EVENT_SINKS", "log")),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", defaultAMQPExchange),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDatabase:    getEnv("MONGO_DATABASE", defaultMongoDatabase),
		DevAdminID:       os.Getenv("DEV_ADMIN_ID"),
		BootstrapAdminID: strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_ID")),
	}

	if cfg.BootstrapAdminID != "" {
		if _, err := uuid.Parse(cfg.BootstrapAdminID); err != nil {
			return Config{}, fmt.Errorf("invalid BOOTSTRAP_ADMIN_ID: %w", err)
		}
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	maxAmount, err := decimal.NewFromString(getEnv("MAX_REQUEST_AMOUNT", defaultMaxRequestAmount))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MAX_REQUEST_AMOUNT: %w", err)
	}
	if !maxAmount.IsPositive() {
		return Config{}, fmt.Errorf("MAX_REQUEST_AMOUNT must be positive")
	}
	cfg.MaxRequestAmount = maxAmount

	opening, err := decimal.NewFromString(getEnv("APP_WALLET_OPENING_BALANCE", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid APP_WALLET_OPENING_BALANCE: %w", err)
	}
	if opening.IsNegative() {
		return Config{}, fmt.Errorf("APP_WALLET_OPENING_BALANCE must not be negative")
	}
	cfg.OpeningBalance = opening

	if v := os.Getenv("CREATE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CREATE_RATE_LIMIT: %w", err)
		}
		cfg.CreateRateLimit = n
	}

	cfg.PaymentGateway = strings.ToLower(os.Getenv("PAYMENT_GATEWAY"))
	switch cfg.PaymentGateway {
	case "":
		if cfg.IsProduction() {
			cfg.PaymentGateway = GatewayDisabled
		} else {
			cfg.PaymentGateway = GatewayMock
		}
	case GatewayMock, GatewayDisabled:
	default:
		return Config{}, fmt.Errorf("invalid PAYMENT_GATEWAY %q", cfg.PaymentGateway)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the process runs in a local development environment.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// SinkEnabled reports whether the named event sink is listed in EVENT_SINKS.
func (c Config) SinkEnabled(name string) bool {
	for _, s := range c.EventSinks {
		if s == name {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
