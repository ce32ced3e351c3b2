package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tokenpoint/internal/types"
)

func TestParseRupiah(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  types.Rupiah
		isSet bool
	}{
		{"plain digits", "2500", 2500, true},
		{"with prefix", "Rp 2500", 2500, true},
		{"lowercase prefix", "rp2500", 2500, true},
		{"thousand separator dots", "2.500", 2500, true},
		{"thousand separator commas", "1,250,000", 1250000, true},
		{"zero", "0", 0, true},
		{"surrounding whitespace", "  5000  ", 5000, true},
		{"empty is unset", "", 0, false},
		{"whitespace only is unset", "   ", 0, false},
		{"garbage is unset", "abc", 0, false},
		{"negative is unset", "-100", 0, false},
		{"mixed garbage is unset", "12x00", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRupiah(tt.in)
			assert.Equal(t, tt.isSet, got.Set)
			if tt.isSet {
				assert.Equal(t, tt.want, got.Value)
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  float64
		isSet bool
	}{
		{"integer", "11", 11, true},
		{"fractional", "11.5", 11.5, true},
		{"with percent sign", "11%", 11, true},
		{"zero", "0", 0, true},
		{"hundred", "100", 100, true},
		{"empty is unset", "", 0, false},
		{"over 100 is unset", "110", 0, false},
		{"negative is unset", "-5", 0, false},
		{"garbage is unset", "eleven", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePercent(tt.in)
			assert.Equal(t, tt.isSet, got.Set)
			if tt.isSet {
				assert.Equal(t, tt.want, got.Value)
			}
		})
	}
}

func TestParseTuple_PerFieldDegradation(t *testing.T) {
	setting := &types.PriceSetting{
		BasePrice:  "1.450",
		TaxPercent: "not-a-number",
		AdminFee:   "2500",
		OtherCosts: "",
	}

	tuple := ParseTuple(setting)

	assert.True(t, tuple.BasePrice.Set)
	assert.Equal(t, types.Rupiah(1450), tuple.BasePrice.Value)
	assert.False(t, tuple.TaxPercent.Set, "malformed tax must degrade to unset")
	assert.True(t, tuple.AdminFee.Set)
	assert.False(t, tuple.OtherCosts.Set, "absent other costs must stay unset")
}

func TestParseTuple_Nil(t *testing.T) {
	tuple := ParseTuple(nil)
	assert.False(t, tuple.BasePrice.Set)
	assert.False(t, tuple.TaxPercent.Set)
	assert.False(t, tuple.AdminFee.Set)
	assert.False(t, tuple.OtherCosts.Set)
}
