// Package config defines the global configuration structure for the
// TokenPoint platform. Configuration is loaded once at process startup and
// is immutable thereafter; code and configuration are strictly separated.
//
// Values are resolved from the OS environment, with a .env file as a
// lower-priority fallback for local development. Any missing required value
// or invalid format fails the process immediately on startup.
package config

import (
	"time"

	"tokenpoint/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tokenpoint-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Vending  VendingConfig
	Queue    QueueConfig
	Pricing  PricingConfig

	// Build metadata, injected via ldflags rather than the environment.
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicURL is the externally reachable base URL, used to build the
	// post-payment redirect targets (no trailing slash).
	PublicURL          string        `envconfig:"PUBLIC_URL" validate:"required,url"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// GatewayConfig holds payment gateway credentials and endpoints.
type GatewayConfig struct {
	BaseURL string `envconfig:"GATEWAY_BASE_URL" validate:"required,url"`
	// ServerKey authenticates session creation and signs callbacks.
	ServerKey SecretString  `envconfig:"GATEWAY_SERVER_KEY" validate:"required"`
	Timeout   time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
}

// VendingConfig holds token vending API credentials and endpoints.
type VendingConfig struct {
	BaseURL string        `envconfig:"VENDING_BASE_URL" validate:"required,url"`
	APIKey  SecretString  `envconfig:"VENDING_API_KEY" validate:"required"`
	Timeout time.Duration `envconfig:"VENDING_TIMEOUT" default:"15s"`
}

// QueueConfig holds AWS messaging configuration for the vend-retry pipeline.
type QueueConfig struct {
	Region            string `envconfig:"AWS_REGION" default:"ap-southeast-1"`
	VendRetryQueueURL string `envconfig:"SQS_VEND_RETRY" validate:"required,url"`
}

// PricingConfig holds locally enforced purchase rules and the discount
// tables. VoucherTable is a comma-separated list of CODE=AMOUNT pairs, e.g.
// "HEMAT10=10000,ONDO5=5000".
type PricingConfig struct {
	MinTotal               int64  `envconfig:"PRICING_MIN_TOTAL" default:"10000"`
	ElectricityGranularity int64  `envconfig:"PRICING_ELECTRICITY_GRANULARITY" default:"5000"`
	VoucherTable           string `envconfig:"PRICING_VOUCHERS"`
	PointsCap              int64  `envconfig:"PRICING_POINTS_CAP" default:"50000"`
	// PointsRate is the Rupiah value of one loyalty point.
	PointsRate int64 `envconfig:"PRICING_POINTS_RATE" default:"1"`
}

// BuildInfo carries compile-time build metadata for the health endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}
