package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string
	AdminID       int64

	// Mini App and policy links shown on /start
	WebAppURL string
	PolicyURL string

	// Payments
	PaymentProviderToken string // empty for Telegram Stars
	UseRealPayments      bool   // false grants paid content without payment

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	// Storage configuration
	StorageDriver string
	DatabasePath  string // sqlite
	DatabaseURL   string // postgres

	// Draft store: Redis when RedisAddr is set, memory otherwise
	RedisAddr     string
	RedisPassword string
	DraftTTL      time.Duration

	RequireInitData bool

	LogLevel  string
	LogFormat string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Admin ID (required)
	adminStr := strings.TrimSpace(os.Getenv("ADMIN_ID"))
	if adminStr == "" {
		return nil, fmt.Errorf("ADMIN_ID is required (Telegram user ID of the administrator)")
	}
	adminID, err := strconv.ParseInt(adminStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_ID: %s", adminStr)
	}
	config.AdminID = adminID

	config.WebAppURL = os.Getenv("WEBAPP_URL")
	config.PolicyURL = os.Getenv("POLICY_URL")

	// Real payments unless explicitly disabled
	config.PaymentProviderToken = os.Getenv("PAYMENT_PROVIDER_TOKEN")
	config.UseRealPayments = os.Getenv("USE_REAL_PAYMENTS") != "false"

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = strings.TrimSuffix(os.Getenv("WEBHOOK_URL"), "/")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	config.Port = getEnv("PORT", "8080")
	if _, err := strconv.Atoi(config.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", config.Port)
	}

	config.StorageDriver = getEnv("STORAGE_DRIVER", DriverSQLite)
	switch config.StorageDriver {
	case DriverSQLite:
		config.DatabasePath = getEnv("DATABASE_PATH", "storefront.db")
	case DriverPostgres:
		config.DatabaseURL = os.Getenv("DATABASE_URL")
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is postgres")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q (use sqlite, postgres or memory)", config.StorageDriver)
	}

	config.RedisAddr = os.Getenv("REDIS_ADDR")
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")

	config.DraftTTL = 24 * time.Hour
	if ttlStr := os.Getenv("DRAFT_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid DRAFT_TTL: %s", ttlStr)
		}
		config.DraftTTL = ttl
	}

	config.RequireInitData = os.Getenv("REQUIRE_INIT_DATA") == "true"

	config.LogLevel = getEnv("LOG_LEVEL", "info")
	config.LogFormat = getEnv("LOG_FORMAT", "json")

	return config, nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
