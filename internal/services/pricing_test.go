package services

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		price, discount, tax string
		want                 string
	}{
		{"100", "10", "18", "106.2"},
		{"100", "0", "0", "100"},
		{"100", "100", "18", "0"},
		{"19.99", "15", "8", "18.35"},
		{"0", "50", "20", "0"},
		{"33.33", "33.33", "33.33", "29.63"},
	}

	for _, tt := range tests {
		got, err := FinalPrice(d(tt.price), d(tt.discount), d(tt.tax))
		require.NoError(t, err)
		assert.True(t, d(tt.want).Equal(got), "FinalPrice(%s, %s, %s) = %s, want %s", tt.price, tt.discount, tt.tax, got, tt.want)
	}
}

func TestFinalPriceRejectsInvalidInput(t *testing.T) {
	cases := [][3]string{
		{"-1", "0", "0"},
		{"10", "-1", "0"},
		{"10", "100.01", "0"},
		{"10", "0", "-5"},
	}
	for _, c := range cases {
		_, err := FinalPrice(d(c[0]), d(c[1]), d(c[2]))
		assert.True(t, errors.Is(err, ErrInvalidAmount), "inputs %v", c)
	}
}

func TestAmountFromFloat(t *testing.T) {
	_, err := AmountFromFloat(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = AmountFromFloat(math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	v, err := AmountFromFloat(12.5)
	require.NoError(t, err)
	assert.True(t, d("12.5").Equal(v))
}

func TestFinalPriceMonotonicity(t *testing.T) {
	prices := []string{"0", "0.01", "1", "9.99", "100", "1234.56"}
	discounts := []string{"0", "5", "10", "33.3", "50", "99.99", "100"}
	taxes := []string{"0", "1", "8", "18", "20", "100"}

	for _, p := range prices {
		for _, tax := range taxes {
			prev := decimal.NewFromInt(math.MaxInt32)
			for _, disc := range discounts {
				got, err := FinalPrice(d(p), d(disc), d(tax))
				require.NoError(t, err)
				assert.False(t, got.IsNegative())
				assert.True(t, got.LessThanOrEqual(prev), "not non-increasing in discount at price=%s tax=%s", p, tax)
				prev = got
			}
		}
	}

	for _, disc := range discounts {
		for _, tax := range taxes {
			prev := decimal.Zero
			for _, p := range prices {
				got, err := FinalPrice(d(p), d(disc), d(tax))
				require.NoError(t, err)
				assert.True(t, got.GreaterThanOrEqual(prev), "not non-decreasing in price at disc=%s tax=%s", disc, tax)
				prev = got
			}
		}
	}

	for _, p := range prices {
		for _, disc := range discounts {
			prev := decimal.Zero
			for _, tax := range taxes {
				got, err := FinalPrice(d(p), d(disc), d(tax))
				require.NoError(t, err)
				assert.True(t, got.GreaterThanOrEqual(prev), "not non-decreasing in tax at price=%s disc=%s", p, disc)
				prev = got
			}
		}
	}
}

func TestApplyDiscount(t *testing.T) {
	paid, err := ApplyDiscount(d("212.40"), models.DiscountTypePercentage, d("10"))
	require.NoError(t, err)
	assert.True(t, d("191.16").Equal(paid), "got %s", paid)

	paid, err = ApplyDiscount(d("99.99"), models.DiscountTypePercentage, d("15"))
	require.NoError(t, err)
	assert.True(t, d("84.99").Equal(paid), "got %s", paid)

	paid, err = ApplyDiscount(d("212.40"), models.DiscountTypeFixed, d("50"))
	require.NoError(t, err)
	assert.True(t, d("162.40").Equal(paid), "got %s", paid)

	paid, err = ApplyDiscount(d("40"), models.DiscountTypeFixed, d("50"))
	require.NoError(t, err)
	assert.True(t, paid.IsZero())

	_, err = ApplyDiscount(d("40"), models.DiscountTypePercentage, d("120"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ApplyDiscount(d("40"), "BOGUS", d("1"))
	assert.ErrorIs(t, err, ErrValidation)
}
