package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// AppliedDiscount is what a valid code contributes to a checkout.
type AppliedDiscount struct {
	CodeID         uuid.UUID           `json:"-"`
	Code           string              `json:"code"`
	DiscountType   models.DiscountType `json:"discountType"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
}

// DiscountService validates discount codes and records their usage.
type DiscountService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDiscountService(db *gorm.DB) *DiscountService {
	return &DiscountService{db: db, now: time.Now}
}

// Validate checks that code may be applied to a basket of the given variants.
func (s *DiscountService) Validate(ctx context.Context, code string, variantIDs []uuid.UUID) (*AppliedDiscount, error) {
	dc, err := s.find(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if err := CheckDiscount(dc, variantIDs, s.now()); err != nil {
		return nil, err
	}
	return &AppliedDiscount{
		CodeID:         dc.ID,
		Code:           dc.Code,
		DiscountType:   dc.DiscountType,
		DiscountAmount: dc.DiscountAmount,
	}, nil
}

func (s *DiscountService) find(ctx context.Context, db *gorm.DB, code string) (*models.DiscountCode, error) {
	normalized := models.NormalizeCode(code)
	if normalized == "" {
		return nil, ErrDiscountNotFound
	}

	var dc models.DiscountCode
	if err := db.WithContext(ctx).
		Preload("Variants", "is_deleted = ?", false).
		Where("code = ?", normalized).
		First(&dc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscountNotFound
		}
		return nil, err
	}
	return &dc, nil
}

// CheckDiscount applies the usability rules to a loaded code. Expiry is
// checked independently of the active flag.
func CheckDiscount(dc *models.DiscountCode, variantIDs []uuid.UUID, now time.Time) error {
	if dc == nil {
		return ErrDiscountNotFound
	}
	if !dc.Active {
		return ErrDiscountInactive
	}
	if dc.ExpiresAt != nil && !dc.ExpiresAt.After(now) {
		return ErrDiscountExpired
	}
	if dc.UsageLimit != nil && dc.Uses >= *dc.UsageLimit {
		return ErrDiscountLimitReached
	}
	if dc.AllProducts {
		return nil
	}

	eligible := make(map[uuid.UUID]struct{}, len(dc.Variants))
	for _, v := range dc.Variants {
		eligible[v.ID] = struct{}{}
	}
	var outside []uuid.UUID
	for _, id := range variantIDs {
		if _, ok := eligible[id]; !ok {
			outside = append(outside, id)
		}
	}
	if len(outside) > 0 {
		return ErrDiscountOutOfScope.withIDs(outside)
	}
	return nil
}

// redeem consumes one use of the code inside tx. The eligibility check and
// the increment are one statement, so concurrent checkouts cannot overshoot
// the limit.
func (s *DiscountService) redeem(ctx context.Context, tx *gorm.DB, codeID uuid.UUID) error {
	now := s.now()
	res := tx.WithContext(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ? AND active = ?", codeID, true).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Where("(usage_limit IS NULL OR uses < usage_limit)").
		UpdateColumn("uses", gorm.Expr("uses + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var dc models.DiscountCode
	if err := tx.WithContext(ctx).First(&dc, "id = ?", codeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDiscountNotFound
		}
		return err
	}
	if err := CheckDiscount(&dc, nil, now); err != nil {
		return err
	}
	return ErrConcurrencyConflict
}

// release gives back one use of the code inside tx, never going below zero.
func (s *DiscountService) release(ctx context.Context, tx *gorm.DB, codeID uuid.UUID) error {
	return tx.WithContext(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ? AND uses > 0", codeID).
		UpdateColumn("uses", gorm.Expr("uses - 1")).Error
}

// redeemCode re-validates code against the basket inside tx and consumes
// one use of it.
func (s *DiscountService) redeemCode(ctx context.Context, tx *gorm.DB, code string, variantIDs []uuid.UUID) (uuid.UUID, error) {
	dc, err := s.find(ctx, tx, code)
	if err != nil {
		return uuid.Nil, err
	}
	if err := CheckDiscount(dc, variantIDs, s.now()); err != nil {
		return uuid.Nil, err
	}
	if err := s.redeem(ctx, tx, dc.ID); err != nil {
		return uuid.Nil, err
	}
	return dc.ID, nil
}
