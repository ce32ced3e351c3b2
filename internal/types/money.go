package types

import "fmt"

// Rupiah is a monetary amount in whole Indonesian Rupiah. Prepaid token
// products are never priced in fractional Rupiah, so int64 is exact.
type Rupiah int64

// String formats the amount with the conventional "Rp" prefix.
func (r Rupiah) String() string {
	return fmt.Sprintf("Rp %d", int64(r))
}

// RupiahField is a parsed monetary field that distinguishes "zero" from
// "never configured". Price settings are stored as free-form strings and an
// absent or malformed value is a valid state, so the zero value alone cannot
// carry that information.
type RupiahField struct {
	Value Rupiah
	Set   bool
}

// SetRupiah returns a configured RupiahField holding v.
func SetRupiah(v Rupiah) RupiahField {
	return RupiahField{Value: v, Set: true}
}

// OrZero returns the configured value, or 0 when the field is unset.
func (f RupiahField) OrZero() Rupiah {
	if !f.Set {
		return 0
	}
	return f.Value
}

// PercentField is a parsed percentage with an explicit unset state, used for
// tax rates stored as free-form strings.
type PercentField struct {
	Value float64
	Set   bool
}

// SetPercent returns a configured PercentField holding v.
func SetPercent(v float64) PercentField {
	return PercentField{Value: v, Set: true}
}

// OrZero returns the configured value, or 0 when the field is unset.
func (f PercentField) OrZero() float64 {
	if !f.Set {
		return 0
	}
	return f.Value
}
