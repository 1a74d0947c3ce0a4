package models

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VariantType string

const (
	VariantTypeColor  VariantType = "COLOR"
	VariantTypeSize   VariantType = "SIZE"
	VariantTypeWeight VariantType = "WEIGHT"
)

type Product struct {
	BaseModel
	Name     string          `json:"name"`
	Category string          `json:"category"`
	TaxRate  decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"tax_rate"`
	Variants []Variant       `json:"variants,omitempty"`
}

// Variant is a purchasable configuration of a product. Settled order lines
// copy its price, so later edits never rewrite history.
type Variant struct {
	BaseModel
	ProductID   uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	Product     *Product        `json:"product,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Discount    decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	IsPublished bool            `gorm:"not null;default:false" json:"is_published"`
	IsDeleted   bool            `gorm:"not null;default:false;index" json:"is_deleted"`
	Type        VariantType     `gorm:"type:varchar(16);not null" json:"type"`
	Value       string          `json:"value"`
	Unit        *string         `json:"unit"`
}

// BeforeSave rejects weight variants without a unit.
func (v *Variant) BeforeSave(tx *gorm.DB) error {
	switch v.Type {
	case VariantTypeColor, VariantTypeSize:
	case VariantTypeWeight:
		if v.Unit == nil || *v.Unit == "" {
			return errors.New("weight variant requires a unit")
		}
	default:
		return errors.New("unknown variant type")
	}
	if v.Stock < 0 {
		return errors.New("variant stock cannot be negative")
	}
	return nil
}

// Label renders the variant for gateway basket items.
func (v Variant) Label() string {
	label := v.Value
	if v.Unit != nil && *v.Unit != "" {
		label += " " + *v.Unit
	}
	if v.Product != nil && v.Product.Name != "" {
		return v.Product.Name + " - " + label
	}
	return label
}
