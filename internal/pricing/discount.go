package pricing

import (
	"fmt"
	"strings"

	"tokenpoint/internal/types"
)

// AppliedDiscount is the outcome of evaluating one discount source. A
// rejected discount carries a human-readable note and a zero amount; the
// purchase proceeds without it.
type AppliedDiscount struct {
	Source types.DiscountSource
	Amount types.Rupiah
	Note   string
}

// DiscountEngine evaluates voucher codes and loyalty-point redemptions.
// Voucher codes map to fixed Rupiah discounts from a configuration-backed
// table; points convert at a fixed rate up to a per-order cap.
type DiscountEngine struct {
	vouchers  map[string]types.Rupiah
	pointsCap int64
	// pointsRate is the Rupiah value of one loyalty point.
	pointsRate types.Rupiah
}

// NewDiscountEngine creates a DiscountEngine. Voucher codes are matched
// case-insensitively. A nil voucher table means every code is unknown.
func NewDiscountEngine(vouchers map[string]types.Rupiah, pointsCap int64, pointsRate types.Rupiah) *DiscountEngine {
	normalized := make(map[string]types.Rupiah, len(vouchers))
	for code, amount := range vouchers {
		normalized[strings.ToUpper(strings.TrimSpace(code))] = amount
	}
	return &DiscountEngine{
		vouchers:   normalized,
		pointsCap:  pointsCap,
		pointsRate: pointsRate,
	}
}

// Voucher evaluates a voucher code. Unknown codes return a zero discount
// with a rejection note, not an error.
func (e *DiscountEngine) Voucher(code string) AppliedDiscount {
	amount, ok := e.vouchers[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return AppliedDiscount{
			Source: types.DiscountNone,
			Note:   fmt.Sprintf("voucher code %q is not recognized", code),
		}
	}
	return AppliedDiscount{Source: types.DiscountVoucher, Amount: amount}
}

// Points evaluates a loyalty-point redemption against the balance seen at
// quote time: redeemable = min(balance, cap), converted at the fixed rate.
// The result is advisory; the balance is re-checked and decremented
// atomically per customer when the order settles.
func (e *DiscountEngine) Points(balance int64) AppliedDiscount {
	if balance <= 0 {
		return AppliedDiscount{
			Source: types.DiscountNone,
			Note:   "no loyalty points available to redeem",
		}
	}
	redeemable := balance
	if e.pointsCap > 0 && redeemable > e.pointsCap {
		redeemable = e.pointsCap
	}
	return AppliedDiscount{
		Source: types.DiscountPoints,
		Amount: types.Rupiah(redeemable) * e.pointsRate,
	}
}

// PointsUsed converts an applied points discount back to the number of
// points it consumes. Used at settlement to decrement the balance.
func (e *DiscountEngine) PointsUsed(discount types.Rupiah) int64 {
	if e.pointsRate <= 0 || discount <= 0 {
		return 0
	}
	return int64(discount / e.pointsRate)
}
