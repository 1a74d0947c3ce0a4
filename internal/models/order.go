package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailure PaymentStatus = "FAILURE"
)

type RefundStatus string

const (
	RefundStatusNone      RefundStatus = "NONE"
	RefundStatusRequested RefundStatus = "REQUESTED"
	RefundStatusRejected  RefundStatus = "REJECTED"
	RefundStatusCompleted RefundStatus = "COMPLETED"
)

type Order struct {
	BaseModel
	OrderNumber    string          `gorm:"uniqueIndex;not null" json:"order_number"`
	PaymentID      string          `gorm:"uniqueIndex;not null" json:"payment_id"`
	ConversationID string          `json:"conversation_id"`
	BasketID       string          `json:"basket_id"`
	IP             string          `json:"ip"`
	Status         OrderStatus     `gorm:"type:varchar(16);not null;index" json:"status"`
	PaymentStatus  PaymentStatus   `gorm:"type:varchar(16);not null" json:"payment_status"`
	PaymentDate    *time.Time      `json:"payment_date"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	PaidPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"paid_price"`
	Currency       string          `json:"currency"`
	Installment    int             `json:"installment"`
	UserID         *uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	User           *User           `json:"user,omitempty"`
	AddressID      uuid.UUID       `gorm:"type:uuid;not null" json:"address_id"`
	Address        *Address        `json:"address,omitempty"`
	DiscountCodeID *uuid.UUID      `gorm:"type:uuid" json:"discount_code_id"`
	DiscountCode   *DiscountCode   `json:"discount_code,omitempty"`

	CardAssociation string `json:"card_association"`
	CardFamily      string `json:"card_family"`
	CardType        string `json:"card_type"`
	BinNumber       string `json:"bin_number"`
	LastFourDigits  string `json:"last_four_digits"`

	IsCancelled         bool       `gorm:"not null;default:false" json:"is_cancelled"`
	CancelReason        string     `json:"cancel_reason"`
	CancelProcessDate   *time.Time `json:"cancel_process_date"`
	CancelHostReference string     `json:"cancel_host_reference"`

	ShippedAt   *time.Time  `json:"shipped_at"`
	DeliveredAt *time.Time  `json:"delivered_at"`
	Items       []OrderItem `json:"items,omitempty"`
}

// OrderItem groups every gateway basket entry of one variant.
type OrderItem struct {
	BaseModel
	OrderID              uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	VariantID            uuid.UUID       `gorm:"type:uuid;index;not null" json:"variant_id"`
	Quantity             int             `gorm:"not null" json:"quantity"`
	Price                decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	PaidPrice            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"paid_price"`
	TotalPrice           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	MerchantPayoutAmount decimal.Decimal `gorm:"type:numeric(12,2)" json:"merchant_payout_amount"`

	IsRefunded        bool            `gorm:"not null;default:false" json:"is_refunded"`
	RefundStatus      RefundStatus    `gorm:"type:varchar(16);not null;default:'NONE'" json:"refund_status"`
	RefundAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"refund_amount"`
	RefundReason      string          `json:"refund_reason"`
	RefundNote        string          `json:"refund_note"`
	RefundRequestDate *time.Time      `json:"refund_request_date"`
	RefundProcessDate *time.Time      `json:"refund_process_date"`

	Transactions []OrderItemTransaction `json:"transactions,omitempty"`
}

// OrderItemTransaction is one gateway item transaction. Refunds are issued per row.
type OrderItemTransaction struct {
	BaseModel
	OrderItemID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_item_id"`
	PaymentTransactionID string          `gorm:"uniqueIndex;not null" json:"payment_transaction_id"`
	Price                decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	PaidPrice            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"paid_price"`
	MerchantPayoutAmount decimal.Decimal `gorm:"type:numeric(12,2)" json:"merchant_payout_amount"`
	RefundedAt           *time.Time      `json:"refunded_at"`
}
