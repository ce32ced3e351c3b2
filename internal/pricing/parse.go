// Package pricing implements the price-resolution and price-computation core
// of the platform: walking the Area -> Project -> Vendor hierarchy to find a
// vendor-specific price configuration, cross-checking it against the vendor
// registry, and turning a nominal purchase amount into a final payable
// breakdown under the discount rules.
package pricing

import (
	"strconv"
	"strings"

	"tokenpoint/internal/types"
)

// ParseRupiah parses a stored free-form money string ("2500", "Rp 2.500",
// "2,500") into a RupiahField. Absent or malformed values come back unset;
// raw strings never travel past this boundary.
func ParseRupiah(s string) types.RupiahField {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.RupiahField{}
	}
	s = strings.TrimPrefix(strings.ToLower(s), "rp")
	s = strings.TrimSpace(s)
	// Thousand separators only; a money string with a fractional part is
	// malformed for whole-Rupiah products.
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return types.RupiahField{}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return types.RupiahField{}
	}
	return types.SetRupiah(types.Rupiah(v))
}

// ParsePercent parses a stored free-form percentage string ("11", "11.5",
// "11%") into a PercentField. Absent or malformed values come back unset.
func ParsePercent(s string) types.PercentField {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return types.PercentField{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 {
		return types.PercentField{}
	}
	return types.SetPercent(v)
}

// ParseTuple converts a raw PriceSetting into a PriceTuple, field by field.
// Each malformed field degrades to unset independently; one bad value does
// not discard the rest of the configuration.
func ParseTuple(setting *types.PriceSetting) types.PriceTuple {
	if setting == nil {
		return types.PriceTuple{}
	}
	return types.PriceTuple{
		BasePrice:  ParseRupiah(setting.BasePrice),
		TaxPercent: ParsePercent(setting.TaxPercent),
		AdminFee:   ParseRupiah(setting.AdminFee),
		OtherCosts: ParseRupiah(setting.OtherCosts),
	}
}
