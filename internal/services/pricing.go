package services

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/models"
)

var hundred = decimal.NewFromInt(100)

// FinalPrice returns the tax-inclusive, discount-adjusted unit price rounded
// to 2 decimal places. Invalid inputs are reported, never clamped.
func FinalPrice(price, discountPercent, taxRate decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() || taxRate.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return decimal.Zero, ErrInvalidAmount.withMessage("discount must be between 0 and 100, got %s", discountPercent)
	}

	discounted := price.Sub(price.Mul(discountPercent).Div(hundred))
	withTax := discounted.Mul(decimal.NewFromInt(1).Add(taxRate.Div(hundred)))
	return withTax.Round(2), nil
}

// AmountFromFloat converts a float amount, rejecting NaN and infinities.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromFloat(f), nil
}

// ApplyDiscount returns the amount to charge for total after a discount code.
// Fixed discounts never take the total below zero.
func ApplyDiscount(total decimal.Decimal, discountType models.DiscountType, amount decimal.Decimal) (decimal.Decimal, error) {
	if total.IsNegative() || amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}

	switch discountType {
	case models.DiscountTypePercentage:
		if amount.GreaterThan(hundred) {
			return decimal.Zero, ErrInvalidAmount.withMessage("percentage discount cannot exceed 100")
		}
		return total.Sub(total.Mul(amount).Div(hundred)).Round(2), nil
	case models.DiscountTypeFixed:
		paid := total.Sub(amount)
		if paid.IsNegative() {
			return decimal.Zero, nil
		}
		return paid.Round(2), nil
	default:
		return decimal.Zero, ErrValidation.withMessage("unknown discount type %q", discountType)
	}
}
