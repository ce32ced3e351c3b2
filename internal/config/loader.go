package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tokenpoint/internal/types"
)

// LoadConfig loads and validates the platform configuration.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in period formatting.
//  2. Load a .env file via godotenv (non-fatal if absent; existing
//     environment variables are not overridden).
//  3. Process envconfig struct tags to populate the Config struct.
//  4. Populate build metadata from linker-injected variables.
//  5. Validate the struct with go-playground/validator.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// ParseVoucherTable parses the comma-separated CODE=AMOUNT voucher table
// into the map consumed by the discount engine. Malformed entries are
// rejected outright: a silently dropped voucher would surface as "code not
// recognized" to buyers with no operator signal.
func ParseVoucherTable(raw string) (map[string]types.Rupiah, error) {
	out := map[string]types.Rupiah{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		code, amountStr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || code == "" {
			return nil, fmt.Errorf("config: malformed voucher entry %q", pair)
		}
		amount, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("config: invalid voucher amount in %q", pair)
		}
		out[code] = types.Rupiah(amount)
	}
	return out, nil
}
