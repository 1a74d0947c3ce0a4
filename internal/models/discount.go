package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "FIXED"
	DiscountTypePercentage DiscountType = "PERCENTAGE"
)

var hundred = decimal.NewFromInt(100)

// DiscountCode is a promotional code. Uses only ever grows during checkout.
type DiscountCode struct {
	BaseModel
	Code           string          `gorm:"uniqueIndex;not null" json:"code"`
	DiscountType   DiscountType    `gorm:"type:varchar(16);not null" json:"discount_type"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_amount"`
	Active         bool            `gorm:"not null" json:"active"`
	UsageLimit     *int            `json:"usage_limit"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	Uses           int             `gorm:"not null;default:0" json:"uses"`
	AllProducts    bool            `gorm:"not null" json:"all_products"`
	Variants       []Variant       `gorm:"many2many:discount_code_variants;" json:"variants,omitempty"`
}

// NormalizeCode is the canonical stored form of a discount code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// BeforeSave normalizes the code and enforces amount bounds.
func (d *DiscountCode) BeforeSave(tx *gorm.DB) error {
	d.Code = NormalizeCode(d.Code)
	if d.Code == "" {
		return errors.New("discount code is required")
	}
	if d.DiscountAmount.IsNegative() {
		return errors.New("discount amount cannot be negative")
	}
	switch d.DiscountType {
	case DiscountTypeFixed:
	case DiscountTypePercentage:
		if d.DiscountAmount.GreaterThan(hundred) {
			return errors.New("percentage discount cannot exceed 100")
		}
	default:
		return errors.New("unknown discount type")
	}
	return nil
}
