package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// BasketLine is one requested variant and quantity.
type BasketLine struct {
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
}

// ResolvedLine is a basket line with its variant and computed unit price.
type ResolvedLine struct {
	Variant   models.Variant
	Quantity  int
	UnitPrice decimal.Decimal
}

// Basket is the gateway-ready view of a checkout basket.
type Basket struct {
	Lines []ResolvedLine
	// Items holds one entry per unit; the gateway basket has no quantity field.
	Items []BasketItem
	Total decimal.Decimal
}

// VariantIDs lists the distinct variants in the basket.
func (b *Basket) VariantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.Lines))
	for i, l := range b.Lines {
		ids[i] = l.Variant.ID
	}
	return ids
}

// BasketAssembler resolves requested lines against the catalog.
type BasketAssembler struct {
	db *gorm.DB
}

func NewBasketAssembler(db *gorm.DB) *BasketAssembler {
	return &BasketAssembler{db: db}
}

// Assemble validates the lines, loads every variant in one query and expands
// the basket into gateway items.
func (a *BasketAssembler) Assemble(ctx context.Context, lines []BasketLine) (*Basket, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(merged))
	for i, l := range merged {
		ids[i] = l.VariantID
	}

	var variants []models.Variant
	if err := a.db.WithContext(ctx).
		Preload("Product").
		Where("id IN ? AND is_deleted = ?", ids, false).
		Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("load basket variants: %w", err)
	}

	return buildBasket(merged, variants)
}

// mergeLines rejects non-positive quantities as one batch and folds repeated
// variants into a single line, keeping first-seen order.
func mergeLines(lines []BasketLine) ([]BasketLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyBasket
	}

	var invalid []uuid.UUID
	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]BasketLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			invalid = append(invalid, l.VariantID)
			continue
		}
		if i, ok := index[l.VariantID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.VariantID] = len(merged)
		merged = append(merged, l)
	}
	if len(invalid) > 0 {
		return nil, ErrInvalidQuantity.withIDs(invalid)
	}
	return merged, nil
}

func buildBasket(lines []BasketLine, variants []models.Variant) (*Basket, error) {
	byID := make(map[uuid.UUID]models.Variant, len(variants))
	for _, v := range variants {
		if !v.IsDeleted {
			byID[v.ID] = v
		}
	}

	var missing, unpublished, short []uuid.UUID
	for _, l := range lines {
		v, ok := byID[l.VariantID]
		switch {
		case !ok:
			missing = append(missing, l.VariantID)
		case !v.IsPublished:
			unpublished = append(unpublished, l.VariantID)
		case v.Stock < l.Quantity:
			short = append(short, l.VariantID)
		}
	}
	if len(missing) > 0 {
		return nil, ErrProductsNotFound.withIDs(missing)
	}
	if len(unpublished) > 0 {
		return nil, ErrProductsUnpublished.withIDs(unpublished)
	}
	if len(short) > 0 {
		return nil, ErrInsufficientStock.withIDs(short)
	}

	basket := &Basket{Total: decimal.Zero}
	for _, l := range lines {
		v := byID[l.VariantID]
		taxRate := decimal.Zero
		category := "General"
		if v.Product != nil {
			taxRate = v.Product.TaxRate
			if v.Product.Category != "" {
				category = v.Product.Category
			}
		}

		unit, err := FinalPrice(v.Price, v.Discount, taxRate)
		if err != nil {
			return nil, fmt.Errorf("price variant %s: %w", v.ID, err)
		}

		basket.Lines = append(basket.Lines, ResolvedLine{Variant: v, Quantity: l.Quantity, UnitPrice: unit})
		for i := 0; i < l.Quantity; i++ {
			basket.Items = append(basket.Items, BasketItem{
				ID:        v.ID.String(),
				Name:      v.Label(),
				Category1: category,
				ItemType:  "PHYSICAL",
				Price:     unit,
			})
			basket.Total = basket.Total.Add(unit)
		}
	}

	return basket, nil
}

// reserveStock takes the ordered quantities off their variants. Each decrement
// only applies while enough stock is left, so concurrent orders cannot
// oversell what the basket check saw.
func reserveStock(tx *gorm.DB, items []models.OrderItem) error {
	var short []uuid.UUID
	for _, item := range items {
		res := tx.Model(&models.Variant{}).
			Where("id = ? AND stock >= ?", item.VariantID, item.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
		if res.Error != nil {
			return fmt.Errorf("reserve stock of %s: %w", item.VariantID, res.Error)
		}
		if res.RowsAffected == 0 {
			short = append(short, item.VariantID)
		}
	}
	if len(short) > 0 {
		return ErrInsufficientStock.withIDs(short)
	}
	return nil
}
