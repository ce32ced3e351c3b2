package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tokenpoint/internal/types"
)

// GatewayClientConfig holds the configuration for creating a GatewayClient.
type GatewayClientConfig struct {
	// BaseURL is the gateway's API root, e.g. the sandbox or production host.
	BaseURL string
	// ServerKey authenticates the merchant; sent as HTTP Basic username with
	// an empty password per the hosted-gateway convention.
	ServerKey string
	Logger    *slog.Logger
}

// GatewayClient implements PaymentGateway against the hosted-redirect
// payment provider's JSON API. All requests go through BaseClient so they
// inherit the circuit breaker, retries, and error mapping.
type GatewayClient struct {
	base      *BaseClient
	baseURL   string
	serverKey string
	logger    *slog.Logger
}

// NewGatewayClient creates a GatewayClient. The httpClient's timeout bounds
// each attempt; session creation is synchronous with the buyer waiting, so
// keep it short (10-20 seconds).
func NewGatewayClient(httpClient *http.Client, cfg GatewayClientConfig) *GatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := NewBaseClient(
		httpClient,
		"payment-gateway",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    500 * time.Millisecond,
			MaxWait:    3 * time.Second,
		},
		"TokenPoint/1.0",
	)
	return &GatewayClient{
		base:      base,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		serverKey: cfg.ServerKey,
		logger:    logger,
	}
}

// NewGatewayClientWithBase creates a GatewayClient with a pre-configured
// BaseClient. Used by tests to control retry/sleep behavior.
func NewGatewayClientWithBase(base *BaseClient, cfg GatewayClientConfig) *GatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayClient{
		base:      base,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		serverKey: cfg.ServerKey,
		logger:    logger,
	}
}

// createSessionRequest is the wire shape for opening a checkout session.
type createSessionRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone,omitempty"`
	} `json:"customer_details"`
	Callbacks struct {
		Finish   string `json:"finish"`
		Unfinish string `json:"unfinish,omitempty"`
	} `json:"callbacks"`
}

// createSessionResponse is the wire shape of a successful session.
type createSessionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSession opens a hosted checkout session for the order. Non-2xx
// responses and transport failures map to gateway_session_failure; the
// caller leaves the order in created and reports the failure to the buyer.
func (g *GatewayClient) CreateSession(
	ctx context.Context,
	orderID string,
	amount types.Rupiah,
	buyer types.Buyer,
	urls types.RedirectURLs,
) (types.PaymentSession, error) {
	var reqBody createSessionRequest
	reqBody.TransactionDetails.OrderID = orderID
	reqBody.TransactionDetails.GrossAmount = int64(amount)
	reqBody.CustomerDetails.FirstName = buyer.Name
	reqBody.CustomerDetails.Email = buyer.Email
	reqBody.CustomerDetails.Phone = buyer.Phone
	reqBody.Callbacks.Finish = urls.Success
	reqBody.Callbacks.Unfinish = urls.Cancel

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return types.PaymentSession{}, types.NewAppError(
			types.ErrCodeInternalUnexpected, "failed to encode session request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/snap/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return types.PaymentSession{}, types.NewAppError(
			types.ErrCodeInternalUnexpected, "failed to build session request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(g.serverKey))

	resp, err := g.base.Do(req)
	if err != nil {
		g.logger.ErrorContext(ctx, "gateway session request failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return types.PaymentSession{}, types.NewAppError(
			types.ErrCodeGatewaySessionFailure,
			"payment gateway is unavailable",
			err,
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return types.PaymentSession{}, types.NewAppError(
			types.ErrCodeGatewaySessionFailure, "failed to read gateway response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.WarnContext(ctx, "gateway rejected session request",
			slog.String("order_id", orderID),
			slog.Int("status", resp.StatusCode),
		)
		return types.PaymentSession{}, types.NewAppErrorWithDetails(
			types.ErrCodeGatewaySessionFailure,
			fmt.Sprintf("gateway rejected the session request with status %d", resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode, "order_id": orderID},
		)
	}

	var out createSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return types.PaymentSession{}, types.NewAppError(
			types.ErrCodeGatewaySessionFailure, "gateway returned malformed session JSON", err)
	}
	if out.Token == "" || out.RedirectURL == "" {
		return types.PaymentSession{}, types.NewAppError(
			types.ErrCodeGatewaySessionFailure, "gateway session response is missing token or redirect URL", nil)
	}

	return types.PaymentSession{SessionToken: out.Token, RedirectURL: out.RedirectURL}, nil
}

// basicAuth encodes the server key as an HTTP Basic credential with an
// empty password.
func basicAuth(serverKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(serverKey + ":"))
}
