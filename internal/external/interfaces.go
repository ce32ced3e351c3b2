package external

import (
	"context"

	"tokenpoint/internal/types"
)

// PaymentGateway abstracts the hosted-redirect payment provider. The
// settlement orchestrator only ever asks it for a checkout session; the
// gateway reports the outcome asynchronously through the callback endpoint.
type PaymentGateway interface {
	// CreateSession opens a payment session for the given order and amount.
	// The buyer completes payment on the returned redirect URL. A failure
	// here leaves the order in its created state and maps to
	// gateway_session_failure.
	CreateSession(ctx context.Context, orderID string, amount types.Rupiah, buyer types.Buyer, urls types.RedirectURLs) (types.PaymentSession, error)
}

// TokenVendor abstracts the external meter-vending API. It is a black box:
// the only contract is request/response with a distinguishable
// success/failure signal. orderID is forwarded as the idempotency reference;
// callers additionally guard idempotency locally by persisting the issued
// token keyed by order ID.
type TokenVendor interface {
	// Vend requests a token for the meter. Timeouts and upstream failures
	// surface as retryable vending_failure errors, never silently.
	Vend(ctx context.Context, orderID, meterID string, amount types.Rupiah) (tokenCode string, err error)
}

// CallbackVerifier checks the authenticity of gateway callback payloads.
type CallbackVerifier interface {
	// Verify returns nil when the callback's signature is authentic.
	Verify(cb *types.GatewayCallback) error
}
