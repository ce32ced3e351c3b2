package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenpoint/internal/types"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("PUBLIC_URL", "https://tokenpoint.example.com")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/tokenpoint")
	t.Setenv("GATEWAY_BASE_URL", "https://gateway.example.com")
	t.Setenv("GATEWAY_SERVER_KEY", "sk-test-123")
	t.Setenv("VENDING_BASE_URL", "https://vending.example.com")
	t.Setenv("VENDING_API_KEY", "vk-test-456")
	t.Setenv("SQS_VEND_RETRY", "https://sqs.ap-southeast-1.amazonaws.com/123/vend-retry")
}

func TestLoadConfig_Success(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(10_000), cfg.Pricing.MinTotal)
	assert.Equal(t, int64(5_000), cfg.Pricing.ElectricityGranularity)
	assert.Equal(t, "sk-test-123", cfg.Gateway.ServerKey.Unmask())
}

func TestLoadConfig_MissingRequiredFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEWAY_SERVER_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_InvalidEnvironmentFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production-ish")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_SecretIsRedactedInLogs(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.NotContains(t, cfg.Gateway.ServerKey.String(), "sk-test-123")
}

func TestParseVoucherTable(t *testing.T) {
	table, err := ParseVoucherTable("HEMAT10=10000, ONDO5=5000")
	require.NoError(t, err)
	assert.Equal(t, map[string]types.Rupiah{
		"HEMAT10": 10_000,
		"ONDO5":   5_000,
	}, table)
}

func TestParseVoucherTable_Empty(t *testing.T) {
	table, err := ParseVoucherTable("")
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestParseVoucherTable_MalformedEntryFails(t *testing.T) {
	_, err := ParseVoucherTable("HEMAT10")
	require.Error(t, err)

	_, err = ParseVoucherTable("HEMAT10=ten-thousand")
	require.Error(t, err)

	_, err = ParseVoucherTable("HEMAT10=-5")
	require.Error(t, err)
}
