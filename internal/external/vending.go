package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tokenpoint/internal/types"
)

// VendingClientConfig holds the configuration for creating a VendingClient.
type VendingClientConfig struct {
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

// VendingClient implements TokenVendor against the external meter-vending
// API. The provider's internals are unspecified; the contract is one JSON
// request/response pair per vend with a distinguishable success signal.
//
// Every failure on this path maps to a retryable vending_failure: payment
// has already settled by the time a vend is attempted, so the caller parks
// the order rather than losing the purchase.
type VendingClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewVendingClient creates a VendingClient. The httpClient timeout bounds a
// single vend attempt; a timeout is reported as vending_failure, never
// swallowed.
func NewVendingClient(httpClient *http.Client, cfg VendingClientConfig) *VendingClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := NewBaseClient(
		httpClient,
		"vending-api",
		// No transport-level retries: the orchestrator owns the retry story
		// for vending so that every attempt is recorded against the order.
		RetryPolicy{MaxRetries: 0, MinWait: time.Second, MaxWait: time.Second},
		"TokenPoint/1.0",
	)
	return &VendingClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// NewVendingClientWithBase creates a VendingClient with a pre-configured
// BaseClient. Used by tests.
func NewVendingClientWithBase(base *BaseClient, cfg VendingClientConfig) *VendingClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &VendingClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

type vendRequest struct {
	ReferenceID string `json:"reference_id"`
	MeterID     string `json:"meter_id"`
	Amount      int64  `json:"amount"`
}

type vendResponse struct {
	TokenCode string `json:"token_code"`
	Message   string `json:"message,omitempty"`
}

// Vend requests a token for the meter. The order ID travels as the
// reference_id so a well-behaved provider can deduplicate on its side too;
// local idempotency is still guarded by the generated-token upsert.
func (v *VendingClient) Vend(ctx context.Context, orderID, meterID string, amount types.Rupiah) (string, error) {
	payload, err := json.Marshal(vendRequest{
		ReferenceID: orderID,
		MeterID:     meterID,
		Amount:      int64(amount),
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode vend request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/v1/vend", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build vend request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", v.apiKey)

	resp, err := v.base.Do(req)
	if err != nil {
		v.logger.ErrorContext(ctx, "vend request failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", types.NewAppError(types.ErrCodeVendingFailure, "vending request timed out", err)
		}
		return "", types.NewAppError(types.ErrCodeVendingFailure, "vending API is unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeVendingFailure, "failed to read vending response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.logger.WarnContext(ctx, "vending API rejected the request",
			slog.String("order_id", orderID),
			slog.Int("status", resp.StatusCode),
		)
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeVendingFailure,
			fmt.Sprintf("vending API returned status %d", resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode, "order_id": orderID},
		)
	}

	var out vendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", types.NewAppError(types.ErrCodeVendingFailure, "vending API returned malformed JSON", err)
	}
	if out.TokenCode == "" {
		return "", types.NewAppError(types.ErrCodeVendingFailure, "vending API response is missing the token code", nil)
	}

	return out.TokenCode, nil
}
