package external

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"

	"tokenpoint/internal/types"
)

// DigestVerifier implements CallbackVerifier using the hosted-gateway
// signature convention: the callback carries
//
//	signature_key = SHA-512(order_id + status_code + gross_amount + server_key)
//
// hex-encoded. The comparison is constant-time.
type DigestVerifier struct {
	serverKey string
}

// NewDigestVerifier creates a DigestVerifier bound to the merchant server key.
func NewDigestVerifier(serverKey string) *DigestVerifier {
	return &DigestVerifier{serverKey: serverKey}
}

// Verify checks the callback's signature_key. A missing signature and an
// incorrect signature are distinct errors so the webhook handler can log
// them apart.
func (v *DigestVerifier) Verify(cb *types.GatewayCallback) error {
	if cb.Signature == "" {
		return types.NewAppError(types.ErrCodeAuthSignatureMissing, "callback is missing signature_key", nil)
	}

	sum := sha512.Sum512([]byte(cb.OrderID + cb.StatusCode + cb.GrossAmount + v.serverKey))
	expected := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(expected), []byte(cb.Signature)) != 1 {
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "callback signature does not match", nil)
	}
	return nil
}

// ComputeCallbackSignature produces the signature a gateway would attach to
// a callback. Exported for the stub gateway and tests.
func ComputeCallbackSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
