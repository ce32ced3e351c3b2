package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenpoint/internal/types"
)

func testCalculator() *Calculator {
	engine := NewDiscountEngine(
		map[string]types.Rupiah{"HEMAT10": 10_000},
		50_000, // points cap
		1,      // 1 point = Rp 1
	)
	return NewCalculator(DefaultRules(), engine, nil)
}

func standardTuple() types.PriceTuple {
	return types.PriceTuple{
		BasePrice:  types.SetRupiah(1450),
		TaxPercent: types.SetPercent(11),
		AdminFee:   types.SetRupiah(2500),
		OtherCosts: types.SetRupiah(0),
	}
}

func TestComputePrice_StandardBreakdown(t *testing.T) {
	c := testCalculator()

	// nominal=50000, adminFee=2500, tax=11%, otherCosts=0, no discount.
	bd, err := c.ComputePrice(types.TokenElectricity, 50_000, standardTuple(), types.DiscountSelection{}, 0)
	require.NoError(t, err)

	assert.Equal(t, types.Rupiah(50_000), bd.ProductAmount)
	assert.Equal(t, types.Rupiah(5_500), bd.TaxAmount)
	assert.Equal(t, types.Rupiah(58_000), bd.Subtotal)
	assert.Equal(t, types.Rupiah(58_000), bd.TotalPayment)
	assert.Equal(t, types.DiscountNone, bd.DiscountSource)
}

func TestComputePrice_VoucherDiscount(t *testing.T) {
	c := testCalculator()

	bd, err := c.ComputePrice(types.TokenElectricity, 50_000, standardTuple(),
		types.DiscountSelection{VoucherCode: "HEMAT10"}, 0)
	require.NoError(t, err)

	assert.Equal(t, types.Rupiah(58_000), bd.Subtotal, "subtotal must stay pre-discount")
	assert.Equal(t, types.Rupiah(10_000), bd.DiscountAmount)
	assert.Equal(t, types.Rupiah(48_000), bd.TotalPayment)
	assert.Equal(t, types.DiscountVoucher, bd.DiscountSource)
}

func TestComputePrice_UnknownVoucherProceedsWithoutDiscount(t *testing.T) {
	c := testCalculator()

	bd, err := c.ComputePrice(types.TokenElectricity, 50_000, standardTuple(),
		types.DiscountSelection{VoucherCode: "NOPE"}, 0)
	require.NoError(t, err)

	assert.Equal(t, types.Rupiah(0), bd.DiscountAmount)
	assert.Equal(t, types.DiscountNone, bd.DiscountSource)
	assert.NotEmpty(t, bd.DiscountNote)
	assert.Equal(t, types.Rupiah(58_000), bd.TotalPayment)
}

func TestComputePrice_PointsDiscountCapped(t *testing.T) {
	c := testCalculator()

	// Balance exceeds the cap; only the cap is redeemable.
	bd, err := c.ComputePrice(types.TokenElectricity, 100_000, standardTuple(),
		types.DiscountSelection{RedeemPoints: true}, 80_000)
	require.NoError(t, err)

	assert.Equal(t, types.DiscountPoints, bd.DiscountSource)
	assert.Equal(t, types.Rupiah(50_000), bd.DiscountAmount)
}

func TestComputePrice_VoucherWinsOverPoints(t *testing.T) {
	c := testCalculator()

	bd, err := c.ComputePrice(types.TokenElectricity, 50_000, standardTuple(),
		types.DiscountSelection{VoucherCode: "HEMAT10", RedeemPoints: true}, 80_000)
	require.NoError(t, err)

	assert.Equal(t, types.DiscountVoucher, bd.DiscountSource)
	assert.Equal(t, types.Rupiah(10_000), bd.DiscountAmount)
}

func TestComputePrice_BelowMinimumRejected(t *testing.T) {
	c := testCalculator()

	// nominal=5000 lands under the Rp 10,000 floor even with fees.
	_, err := c.ComputePrice(types.TokenElectricity, 5_000, types.PriceTuple{}, types.DiscountSelection{}, 0)
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodePurchaseInvalidAmount, appErr.Code)
}

func TestComputePrice_GranularityViolationRejected(t *testing.T) {
	c := testCalculator()

	_, err := c.ComputePrice(types.TokenElectricity, 52_000, standardTuple(), types.DiscountSelection{}, 0)
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodePurchaseInvalidAmount, appErr.Code)
}

func TestComputePrice_NonPositiveNominalRejected(t *testing.T) {
	c := testCalculator()

	for _, nominal := range []types.Rupiah{0, -5000} {
		_, err := c.ComputePrice(types.TokenElectricity, nominal, standardTuple(), types.DiscountSelection{}, 0)
		require.Error(t, err)
	}
}

func TestComputePrice_UnsetTupleFallsBackToZeroFees(t *testing.T) {
	c := testCalculator()

	// An unpriced path quotes at the raw nominal with zero fees.
	bd, err := c.ComputePrice(types.TokenElectricity, 50_000, types.PriceTuple{}, types.DiscountSelection{}, 0)
	require.NoError(t, err)

	assert.Equal(t, types.Rupiah(0), bd.AdminFee)
	assert.Equal(t, types.Rupiah(0), bd.TaxAmount)
	assert.Equal(t, types.Rupiah(50_000), bd.TotalPayment)
}

func TestComputePrice_TaxRoundsHalfUp(t *testing.T) {
	c := NewCalculator(
		Rules{MinTotal: 10_000},
		NewDiscountEngine(nil, 0, 0),
		nil,
	)

	tuple := types.PriceTuple{TaxPercent: types.SetPercent(0.5)}
	bd, err := c.ComputePrice(types.TokenWater, 25_100, tuple, types.DiscountSelection{}, 0)
	require.NoError(t, err)
	// 25100 * 0.5% = 125.5 -> 126 with half-up rounding.
	assert.Equal(t, types.Rupiah(126), bd.TaxAmount)
}

func TestComputePrice_Deterministic(t *testing.T) {
	c := testCalculator()
	sel := types.DiscountSelection{VoucherCode: "HEMAT10"}

	first, err := c.ComputePrice(types.TokenElectricity, 50_000, standardTuple(), sel, 1000)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := c.ComputePrice(types.TokenElectricity, 50_000, standardTuple(), sel, 1000)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputePrice_TotalNeverNegative(t *testing.T) {
	engine := NewDiscountEngine(map[string]types.Rupiah{"MEGA": 1_000_000}, 0, 1)
	c := NewCalculator(Rules{MinTotal: 0}, engine, nil)

	bd, err := c.ComputePrice(types.TokenElectricity, 50_000, standardTuple(),
		types.DiscountSelection{VoucherCode: "MEGA"}, 0)
	require.NoError(t, err)
	assert.Equal(t, types.Rupiah(0), bd.TotalPayment)
	assert.GreaterOrEqual(t, int64(bd.TotalPayment), int64(0))
}
