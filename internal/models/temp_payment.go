package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TempPayment carries checkout state across the 3-D Secure redirect.
// It is deleted on first use; expired rows are never honored.
type TempPayment struct {
	BaseModel
	Token          string          `gorm:"uniqueIndex;not null" json:"-"`
	PaymentID      string          `gorm:"index;not null" json:"payment_id"`
	ConversationID string          `json:"conversation_id"`
	BasketID       string          `json:"basket_id"`
	AddressID      uuid.UUID       `gorm:"type:uuid;not null" json:"address_id"`
	UserID         *uuid.UUID      `gorm:"type:uuid" json:"user_id"`
	DiscountCode   string          `json:"discount_code"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	PaidPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"paid_price"`
	Currency       string          `json:"currency"`
	IP             string          `json:"ip"`
	ExpiresAt      time.Time       `gorm:"index;not null" json:"expires_at"`
}

// Expired reports whether the continuation can no longer be resumed at now.
func (t TempPayment) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
