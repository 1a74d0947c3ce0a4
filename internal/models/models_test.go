package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestVariantBeforeSave(t *testing.T) {
	kg := "kg"
	empty := ""

	tests := []struct {
		name    string
		variant Variant
		wantErr bool
	}{
		{"color", Variant{Type: VariantTypeColor, Value: "red"}, false},
		{"size", Variant{Type: VariantTypeSize, Value: "XL"}, false},
		{"weight with unit", Variant{Type: VariantTypeWeight, Value: "1", Unit: &kg}, false},
		{"weight without unit", Variant{Type: VariantTypeWeight, Value: "1"}, true},
		{"weight with empty unit", Variant{Type: VariantTypeWeight, Value: "1", Unit: &empty}, true},
		{"unknown type", Variant{Type: "SHAPE"}, true},
		{"negative stock", Variant{Type: VariantTypeColor, Stock: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.variant.BeforeSave(nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVariantLabel(t *testing.T) {
	kg := "kg"
	v := Variant{Value: "2", Unit: &kg, Product: &Product{Name: "Coffee"}}
	assert.Equal(t, "Coffee - 2 kg", v.Label())
	assert.Equal(t, "red", Variant{Value: "red"}.Label())
}

func TestDiscountCodeBeforeSave(t *testing.T) {
	d := DiscountCode{Code: "  summer10 ", DiscountType: DiscountTypePercentage, DiscountAmount: decimal.NewFromInt(10)}
	assert.NoError(t, d.BeforeSave(nil))
	assert.Equal(t, "SUMMER10", d.Code)

	over := DiscountCode{Code: "x", DiscountType: DiscountTypePercentage, DiscountAmount: decimal.NewFromInt(101)}
	assert.Error(t, over.BeforeSave(nil))

	fixed := DiscountCode{Code: "x", DiscountType: DiscountTypeFixed, DiscountAmount: decimal.NewFromInt(250)}
	assert.NoError(t, fixed.BeforeSave(nil))

	negative := DiscountCode{Code: "x", DiscountType: DiscountTypeFixed, DiscountAmount: decimal.NewFromInt(-1)}
	assert.Error(t, negative.BeforeSave(nil))

	blank := DiscountCode{Code: " ", DiscountType: DiscountTypeFixed}
	assert.Error(t, blank.BeforeSave(nil))
}

func TestTempPaymentExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	tp := TempPayment{ExpiresAt: now.Add(15 * time.Minute)}

	assert.False(t, tp.Expired(now))
	assert.True(t, tp.Expired(now.Add(15*time.Minute)))
	assert.True(t, tp.Expired(now.Add(time.Hour)))
}
