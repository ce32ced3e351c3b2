package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenpoint/internal/types"
)

func TestDigestVerifier_Verify(t *testing.T) {
	const serverKey = "SB-server-key-123"
	v := NewDigestVerifier(serverKey)

	valid := &types.GatewayCallback{
		OrderID:       "ORD-0924-L-0007",
		GatewayStatus: types.GatewaySettlement,
		StatusCode:    "200",
		GrossAmount:   "58000.00",
	}
	valid.Signature = ComputeCallbackSignature(valid.OrderID, valid.StatusCode, valid.GrossAmount, serverKey)

	t.Run("valid signature passes", func(t *testing.T) {
		require.NoError(t, v.Verify(valid))
	})

	t.Run("missing signature", func(t *testing.T) {
		cb := *valid
		cb.Signature = ""
		err := v.Verify(&cb)
		require.Error(t, err)
		appErr := err.(*types.AppError)
		assert.Equal(t, types.ErrCodeAuthSignatureMissing, appErr.Code)
	})

	t.Run("tampered amount", func(t *testing.T) {
		cb := *valid
		cb.GrossAmount = "1.00"
		err := v.Verify(&cb)
		require.Error(t, err)
		appErr := err.(*types.AppError)
		assert.Equal(t, types.ErrCodeAuthSignatureInvalid, appErr.Code)
	})

	t.Run("wrong server key", func(t *testing.T) {
		other := NewDigestVerifier("different-key")
		err := other.Verify(valid)
		require.Error(t, err)
	})
}
