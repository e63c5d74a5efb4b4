package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"TELEGRAM_BOT_TOKEN", "ADMIN_ID", "WEBAPP_URL", "POLICY_URL",
	"PAYMENT_PROVIDER_TOKEN", "USE_REAL_PAYMENTS", "WEBHOOK_MODE", "WEBHOOK_URL",
	"PORT", "STORAGE_DRIVER", "DATABASE_PATH", "DATABASE_URL",
	"REDIS_ADDR", "REDIS_PASSWORD", "DRAFT_TTL", "REQUIRE_INIT_DATA",
	"LOG_LEVEL", "LOG_FORMAT",
}

// setEnv clears every known variable, then applies vars
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func required() map[string]string {
	return map[string]string{
		"TELEGRAM_BOT_TOKEN": "123:abc",
		"ADMIN_ID":           "42",
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setEnv(t, required())

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, int64(42), cfg.AdminID)
	assert.True(t, cfg.UseRealPayments)
	assert.False(t, cfg.WebhookMode)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "storefront.db", cfg.DatabasePath)
	assert.Equal(t, 24*time.Hour, cfg.DraftTTL)
	assert.False(t, cfg.RequireInitData)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	vars := required()
	vars["USE_REAL_PAYMENTS"] = "false"
	vars["WEBHOOK_MODE"] = "true"
	vars["WEBHOOK_URL"] = "https://bot.example.com/"
	vars["PORT"] = "9090"
	vars["STORAGE_DRIVER"] = "postgres"
	vars["DATABASE_URL"] = "postgres://u:p@localhost/db"
	vars["REDIS_ADDR"] = "localhost:6379"
	vars["DRAFT_TTL"] = "30m"
	vars["REQUIRE_INIT_DATA"] = "true"
	setEnv(t, vars)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.UseRealPayments)
	assert.True(t, cfg.WebhookMode)
	assert.Equal(t, "https://bot.example.com", cfg.WebhookURL)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.DatabaseURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Minute, cfg.DraftTTL)
	assert.True(t, cfg.RequireInitData)
}

func TestLoadFromEnv_RealPaymentsOnlyDisabledExplicitly(t *testing.T) {
	for _, v := range []string{"", "true", "0", "no"} {
		vars := required()
		vars["USE_REAL_PAYMENTS"] = v
		setEnv(t, vars)

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.True(t, cfg.UseRealPayments, "USE_REAL_PAYMENTS=%q", v)
	}
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"missing token", map[string]string{"ADMIN_ID": "1"}},
		{"missing admin", map[string]string{"TELEGRAM_BOT_TOKEN": "t"}},
		{"bad admin", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_ID": "admin"}},
		{"webhook without url", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_ID": "1", "WEBHOOK_MODE": "true"}},
		{"bad port", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_ID": "1", "PORT": "http"}},
		{"postgres without url", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_ID": "1", "STORAGE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_ID": "1", "STORAGE_DRIVER": "mongo"}},
		{"bad ttl", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_ID": "1", "DRAFT_TTL": "tomorrow"}},
		{"negative ttl", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_ID": "1", "DRAFT_TTL": "-1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.vars)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
