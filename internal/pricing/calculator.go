package pricing

import (
	"fmt"
	"log/slog"
	"math"

	"tokenpoint/internal/types"
)

// Rules are the locally enforced purchase constraints. They are checked
// before any network call is made.
type Rules struct {
	// MinTotal is the gateway-imposed floor on the final payable amount.
	MinTotal types.Rupiah
	// Granularity maps each token type to the multiple its nominal amounts
	// must be purchased in. A token type absent from the map accepts any
	// positive nominal.
	Granularity map[types.TokenType]types.Rupiah
}

// DefaultRules returns the production constraints: Rp 10,000 payment floor
// and Rp 5,000 purchase granularity for electricity.
func DefaultRules() Rules {
	return Rules{
		MinTotal: 10_000,
		Granularity: map[types.TokenType]types.Rupiah{
			types.TokenElectricity: 5_000,
		},
	}
}

// Calculator turns a nominal purchase amount and a resolved price tuple into
// a payable breakdown. ComputePrice is deterministic: the same inputs always
// produce the same breakdown.
type Calculator struct {
	rules     Rules
	discounts *DiscountEngine
	logger    *slog.Logger
}

// NewCalculator creates a Calculator with the given rules and discount
// engine.
func NewCalculator(rules Rules, discounts *DiscountEngine, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{rules: rules, discounts: discounts, logger: logger}
}

// ComputePrice applies the pricing rules in fixed order:
//
//  1. The nominal must be a positive multiple of the token type's granularity.
//  2. taxAmount = round-half-up(productAmount * taxPercent / 100).
//  3. subtotal = productAmount + adminFee + taxAmount + otherCosts.
//  4. Exactly one discount source applies; if both a voucher and points are
//     somehow supplied, the voucher wins and the conflict is logged.
//  5. totalPayment = max(0, subtotal - discountAmount).
//
// Totals below the gateway floor are rejected with purchase_invalid_amount
// while productAmount > 0. The returned breakdown carries both subtotal and
// totalPayment; the pre-discount figure is a required output, not cosmetics.
//
// pointsBalance is the customer's loyalty point balance at quote time. The
// points discount computed here is advisory; the balance is re-validated and
// decremented atomically when the order settles.
func (c *Calculator) ComputePrice(
	tokenType types.TokenType,
	nominal types.Rupiah,
	tuple types.PriceTuple,
	sel types.DiscountSelection,
	pointsBalance int64,
) (types.PriceBreakdown, error) {
	if nominal <= 0 {
		return types.PriceBreakdown{}, types.NewAppError(
			types.ErrCodePurchaseInvalidAmount,
			"purchase amount must be positive",
			nil,
		)
	}
	if g, ok := c.rules.Granularity[tokenType]; ok && g > 0 && nominal%g != 0 {
		return types.PriceBreakdown{}, types.NewAppErrorWithDetails(
			types.ErrCodePurchaseInvalidAmount,
			fmt.Sprintf("purchase amount must be a multiple of %s", g),
			nil,
			map[string]any{"granularity": int64(g), "nominal": int64(nominal)},
		)
	}

	product := nominal
	adminFee := tuple.AdminFee.OrZero()
	otherCosts := tuple.OtherCosts.OrZero()
	tax := roundHalfUp(float64(product) * tuple.TaxPercent.OrZero() / 100)
	subtotal := product + adminFee + tax + otherCosts

	applied := c.applyDiscount(sel, pointsBalance)

	total := subtotal - applied.Amount
	if total < 0 {
		total = 0
	}

	if total < c.rules.MinTotal {
		return types.PriceBreakdown{}, types.NewAppErrorWithDetails(
			types.ErrCodePurchaseInvalidAmount,
			fmt.Sprintf("total payment is below the %s gateway minimum", c.rules.MinTotal),
			nil,
			map[string]any{"total_payment": int64(total), "minimum": int64(c.rules.MinTotal)},
		)
	}

	return types.PriceBreakdown{
		ProductAmount:  product,
		AdminFee:       adminFee,
		TaxAmount:      tax,
		OtherCosts:     otherCosts,
		Subtotal:       subtotal,
		DiscountAmount: applied.Amount,
		DiscountSource: applied.Source,
		DiscountNote:   applied.Note,
		TotalPayment:   total,
	}, nil
}

// applyDiscount defends the voucher/points mutual exclusion. The UI clears
// one source when the other is selected, but the calculator cannot trust
// that: when both arrive, the voucher takes precedence and the points
// request is ignored and logged as a conflict.
func (c *Calculator) applyDiscount(sel types.DiscountSelection, pointsBalance int64) AppliedDiscount {
	if sel.VoucherCode != "" && sel.RedeemPoints {
		c.logger.Warn("voucher and points supplied together; voucher takes precedence",
			slog.String("voucher_code", sel.VoucherCode),
		)
		sel.RedeemPoints = false
	}

	switch {
	case sel.VoucherCode != "":
		return c.discounts.Voucher(sel.VoucherCode)
	case sel.RedeemPoints:
		return c.discounts.Points(pointsBalance)
	default:
		return AppliedDiscount{Source: types.DiscountNone}
	}
}

// roundHalfUp rounds the fractional tax result using standard half-up
// rounding (0.5 rounds away from zero for the non-negative amounts used
// here).
func roundHalfUp(x float64) types.Rupiah {
	return types.Rupiah(math.Floor(x + 0.5))
}
