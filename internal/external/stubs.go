package external

import (
	"context"
	"fmt"
	"log/slog"

	"tokenpoint/internal/types"
)

// Stub implementations allow the application to boot in local mode without
// real gateway or vending credentials. They log all calls and return
// predictable, safe default values.

// StubGateway implements PaymentGateway by logging calls and returning a
// fake hosted-checkout session. Used when APP_ENV=local.
type StubGateway struct {
	logger *slog.Logger
}

// NewStubGateway creates a new StubGateway.
func NewStubGateway(logger *slog.Logger) *StubGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubGateway{logger: logger}
}

func (s *StubGateway) CreateSession(ctx context.Context, orderID string, amount types.Rupiah, buyer types.Buyer, urls types.RedirectURLs) (types.PaymentSession, error) {
	s.logger.InfoContext(ctx, "stub: CreateSession called",
		"order_id", orderID,
		"amount", int64(amount),
		"customer_id", buyer.CustomerID,
	)
	return types.PaymentSession{
		SessionToken: fmt.Sprintf("snap_stub_%s", orderID),
		RedirectURL:  fmt.Sprintf("https://checkout.stub.local/pay/%s", orderID),
	}, nil
}

// StubVendor implements TokenVendor with a deterministic fake token per
// order so that idempotency checks behave the same way they do in
// production.
type StubVendor struct {
	logger *slog.Logger
}

// NewStubVendor creates a new StubVendor.
func NewStubVendor(logger *slog.Logger) *StubVendor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubVendor{logger: logger}
}

func (s *StubVendor) Vend(ctx context.Context, orderID, meterID string, amount types.Rupiah) (string, error) {
	s.logger.InfoContext(ctx, "stub: Vend called",
		"order_id", orderID,
		"meter_id", meterID,
		"amount", int64(amount),
	)
	return fmt.Sprintf("0000-1111-2222-%s", orderID), nil
}

// StubVerifier implements CallbackVerifier by accepting everything. Local
// mode only; never wire it in production.
type StubVerifier struct{}

func (StubVerifier) Verify(*types.GatewayCallback) error { return nil }
