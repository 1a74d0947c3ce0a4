package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/models"
)

// AfterSalesConfig holds the cancellation and refund policy.
type AfterSalesConfig struct {
	Locale                    string
	Location                  *time.Location
	RefundWindow              time.Duration
	ReleaseDiscountOnReversal bool
}

// AfterSalesService cancels orders and manages per-item refunds.
type AfterSalesService struct {
	db        *gorm.DB
	gateway   PaymentGateway
	verifier  *SignatureVerifier
	discounts *DiscountService
	notifier  OrderNotifier
	cfg       AfterSalesConfig
	now       func() time.Time
}

func NewAfterSalesService(
	db *gorm.DB,
	gateway PaymentGateway,
	verifier *SignatureVerifier,
	discounts *DiscountService,
	notifier OrderNotifier,
	cfg AfterSalesConfig,
) *AfterSalesService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RefundWindow <= 0 {
		cfg.RefundWindow = 14 * 24 * time.Hour
	}
	return &AfterSalesService{
		db:        db,
		gateway:   gateway,
		verifier:  verifier,
		discounts: discounts,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// CanCancel reports whether the buyer may still cancel order at now.
// Cancellation is only self-service on the calendar day of purchase.
func CanCancel(order *models.Order, now time.Time, loc *time.Location) error {
	switch {
	case order.IsCancelled || order.Status == models.OrderStatusCancelled:
		return ErrCancelNotAllowed.withMessage("order is already cancelled")
	case order.PaymentStatus != models.PaymentStatusSuccess:
		return ErrCancelNotAllowed.withMessage("order has no settled payment")
	case order.Status == models.OrderStatusShipped || order.Status == models.OrderStatusCompleted:
		return ErrCancelNotAllowed.withMessage("order has already been shipped")
	case !sameDay(order.CreatedAt, now, loc):
		return ErrCancelNotAllowed.withMessage("orders can only be cancelled on the day of purchase, request a refund instead")
	}
	return nil
}

// CanRequestRefund checks the order level refund preconditions.
func CanRequestRefund(order *models.Order, now time.Time, loc *time.Location, window time.Duration) error {
	switch {
	case order.PaymentStatus != models.PaymentStatusSuccess:
		return ErrRefundNotAllowed.withMessage("order has no settled payment")
	case order.Status != models.OrderStatusCompleted:
		return ErrRefundNotAllowed.withMessage("only delivered orders can be refunded")
	case sameDay(order.CreatedAt, now, loc):
		return ErrRefundNotAllowed.withMessage("orders placed today must be cancelled instead")
	case order.DeliveredAt == nil:
		return ErrRefundNotAllowed.withMessage("order has no delivery date")
	case now.Sub(*order.DeliveredAt) > window:
		return ErrRefundNotAllowed.withMessage("refund window of %d days has passed", int(window.Hours()/24))
	}
	return nil
}

// CanRequestItemRefund rejects items that already have an open or finished refund.
func CanRequestItemRefund(item *models.OrderItem) error {
	if item.IsRefunded || item.RefundStatus == models.RefundStatusRequested || item.RefundStatus == models.RefundStatusCompleted {
		return ErrRefundNotAllowed.withIDs([]uuid.UUID{item.ID})
	}
	return nil
}

func (s *AfterSalesService) loadOwnedOrder(ctx context.Context, userID uuid.UUID, paymentID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Where("payment_id = ? AND user_id = ?", paymentID, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return &order, nil
}

// lockOwnedOrder loads the buyer's order and holds its row lock until tx ends.
func lockOwnedOrder(tx *gorm.DB, userID uuid.UUID, paymentID string) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_id = ? AND user_id = ?", paymentID, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return &order, nil
}

// CancelOrder reverses a same-day order at the gateway and marks it cancelled.
// The order row stays locked while the gateway is called, so concurrent
// cancels of one order reach the gateway once.
func (s *AfterSalesService) CancelOrder(ctx context.Context, userID uuid.UUID, paymentID, reason, ip string) (*models.Order, error) {
	var (
		order     *models.Order
		cancelled *CancelResponse
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOwnedOrder(tx, userID, paymentID)
		if err != nil {
			return err
		}
		if err := CanCancel(order, s.now(), s.cfg.Location); err != nil {
			return err
		}

		resp, err := s.gateway.Cancel(ctx, CancelRequest{
			Locale:         s.cfg.Locale,
			ConversationID: uuid.NewString(),
			PaymentID:      order.PaymentID,
			IP:             ip,
			Reason:         "other",
			Description:    reason,
		})
		if err != nil {
			return err
		}
		if err := s.verifier.VerifyCancel(resp); err != nil {
			logger.ErrorContext(ctx, "cancel signature mismatch", "payment_id", order.PaymentID)
			return err
		}
		cancelled = resp

		now := s.now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND is_cancelled = ? AND status IN ?", order.ID, false,
				[]models.OrderStatus{models.OrderStatusPending, models.OrderStatusProcessing}).
			Updates(map[string]any{
				"status":                models.OrderStatusCancelled,
				"is_cancelled":          true,
				"cancel_reason":         reason,
				"cancel_process_date":   now,
				"cancel_host_reference": resp.HostReference,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrencyConflict.withMessage("order changed while it was being cancelled")
		}
		if err := restock(tx, order.Items); err != nil {
			return err
		}

		order.Status = models.OrderStatusCancelled
		order.IsCancelled = true
		order.CancelReason = reason
		order.CancelProcessDate = &now
		order.CancelHostReference = resp.HostReference

		if s.cfg.ReleaseDiscountOnReversal && order.DiscountCodeID != nil {
			return s.discounts.release(ctx, tx, *order.DiscountCodeID)
		}
		return nil
	})
	if err != nil {
		if cancelled != nil {
			logger.ErrorContext(ctx, "payment cancelled at gateway but order update failed",
				"payment_id", order.PaymentID, "order_number", order.OrderNumber, "error", err)
		}
		return nil, err
	}

	logger.InfoContext(ctx, "order cancelled", "order_number", order.OrderNumber, "payment_id", order.PaymentID)
	return order, nil
}

// restock returns the quantities of cancelled items to their variants.
func restock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		if err := tx.Model(&models.Variant{}).
			Where("id = ?", item.VariantID).
			UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
			return fmt.Errorf("restock variant %s: %w", item.VariantID, err)
		}
	}
	return nil
}

// RequestRefund opens a refund request for the given items of a delivered order.
// No money moves until an admin approves it.
func (s *AfterSalesService) RequestRefund(ctx context.Context, userID uuid.UUID, paymentID string, itemIDs []uuid.UUID, reason string) ([]models.OrderItem, error) {
	if len(itemIDs) == 0 {
		return nil, ErrValidation.withMessage("at least one item is required")
	}

	order, err := s.loadOwnedOrder(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := CanRequestRefund(order, now, s.cfg.Location, s.cfg.RefundWindow); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		byID[order.Items[i].ID] = &order.Items[i]
	}

	var missing, blocked []uuid.UUID
	selected := make([]*models.OrderItem, 0, len(itemIDs))
	seen := make(map[uuid.UUID]bool, len(itemIDs))
	for _, id := range itemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		item, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if err := CanRequestItemRefund(item); err != nil {
			blocked = append(blocked, id)
			continue
		}
		selected = append(selected, item)
	}
	if len(missing) > 0 {
		return nil, ErrOrderItemNotFound.withIDs(missing)
	}
	if len(blocked) > 0 {
		return nil, ErrRefundNotAllowed.withMessage("some items already have a refund request").withIDs(blocked)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range selected {
			res := tx.Model(&models.OrderItem{}).
				Where("id = ? AND is_refunded = ? AND refund_status IN ?", item.ID, false,
					[]models.RefundStatus{models.RefundStatusNone, models.RefundStatusRejected}).
				Updates(map[string]any{
					"refund_status":       models.RefundStatusRequested,
					"refund_reason":       reason,
					"refund_note":         "",
					"refund_request_date": now,
					"refund_amount":       item.PaidPrice,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConcurrencyConflict.withIDs([]uuid.UUID{item.ID})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	requested := make([]models.OrderItem, len(selected))
	for i, item := range selected {
		item.RefundStatus = models.RefundStatusRequested
		item.RefundReason = reason
		item.RefundRequestDate = &now
		item.RefundAmount = item.PaidPrice
		requested[i] = *item
	}

	logger.InfoContext(ctx, "refund requested", "order_number", order.OrderNumber, "items", len(requested))
	if s.notifier != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.notifier.NotifyRefundRequested(nctx, order, requested); err != nil {
				logger.Warn("refund notification failed", "order_number", order.OrderNumber, "error", err)
			}
		}()
	}
	return requested, nil
}

func (s *AfterSalesService) loadItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, *models.Order, error) {
	var item models.OrderItem
	if err := s.db.WithContext(ctx).Preload("Transactions").First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrderItemNotFound.withIDs([]uuid.UUID{itemID})
		}
		return nil, nil, fmt.Errorf("load order item: %w", err)
	}
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", item.OrderID).Error; err != nil {
		return nil, nil, fmt.Errorf("load order of item %s: %w", itemID, err)
	}
	return &item, &order, nil
}

// ApproveRefund refunds every outstanding gateway transaction of a requested
// item and completes the refund. The item row is locked for the whole
// approval, so a second approval waits and then finds the request closed.
// Each refunded transaction is recorded outside that transaction, so an
// approval interrupted halfway can be repeated without refunding twice.
func (s *AfterSalesService) ApproveRefund(ctx context.Context, itemID uuid.UUID, ip string) (*models.OrderItem, error) {
	var (
		item  models.OrderItem
		order models.Order
		now   time.Time
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderItemNotFound.withIDs([]uuid.UUID{itemID})
			}
			return fmt.Errorf("lock order item: %w", err)
		}
		if item.RefundStatus != models.RefundStatusRequested {
			return ErrRefundNotAllowed.withMessage("item has no open refund request").withIDs([]uuid.UUID{item.ID})
		}
		if err := tx.Where("order_item_id = ?", item.ID).
			Order("payment_transaction_id").
			Find(&item.Transactions).Error; err != nil {
			return fmt.Errorf("load item transactions: %w", err)
		}
		if err := tx.First(&order, "id = ?", item.OrderID).Error; err != nil {
			return fmt.Errorf("load order of item %s: %w", itemID, err)
		}

		for i := range item.Transactions {
			if err := s.refundTransaction(ctx, &item.Transactions[i], order.Currency, ip); err != nil {
				return err
			}
		}

		now = s.now()
		res := tx.Model(&models.OrderItem{}).
			Where("id = ? AND refund_status = ?", item.ID, models.RefundStatusRequested).
			Updates(map[string]any{
				"is_refunded":         true,
				"refund_status":       models.RefundStatusCompleted,
				"refund_process_date": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrencyConflict.withIDs([]uuid.UUID{item.ID})
		}

		if !s.cfg.ReleaseDiscountOnReversal || order.DiscountCodeID == nil {
			return nil
		}
		var outstanding int64
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND is_refunded = ?", order.ID, false).
			Count(&outstanding).Error; err != nil {
			return err
		}
		if outstanding == 0 {
			return s.discounts.release(ctx, tx, *order.DiscountCodeID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	item.IsRefunded = true
	item.RefundStatus = models.RefundStatusCompleted
	item.RefundProcessDate = &now
	logger.InfoContext(ctx, "refund completed",
		"order_number", order.OrderNumber, "item_id", item.ID, "amount", item.RefundAmount.String())
	return &item, nil
}

// refundTransaction refunds one gateway transaction unless that already happened.
// The refund is recorded on its own connection so it survives a rollback of
// the approval.
func (s *AfterSalesService) refundTransaction(ctx context.Context, t *models.OrderItemTransaction, currency, ip string) error {
	if t.RefundedAt != nil {
		return nil
	}

	resp, err := s.gateway.Refund(ctx, RefundRequest{
		Locale:               s.cfg.Locale,
		ConversationID:       uuid.NewString(),
		PaymentTransactionID: t.PaymentTransactionID,
		Price:                t.PaidPrice,
		IP:                   ip,
		Currency:             currency,
	})
	if err != nil {
		return err
	}
	if err := s.verifier.VerifyRefund(resp); err != nil {
		logger.ErrorContext(ctx, "refund signature mismatch",
			"payment_transaction_id", t.PaymentTransactionID)
		return err
	}

	refundedAt := s.now()
	if err := s.db.WithContext(ctx).Model(&models.OrderItemTransaction{}).
		Where("id = ? AND refunded_at IS NULL", t.ID).
		Update("refunded_at", refundedAt).Error; err != nil {
		logger.ErrorContext(ctx, "refund issued but not recorded",
			"payment_transaction_id", t.PaymentTransactionID, "error", err)
		return fmt.Errorf("record refund of %s: %w", t.PaymentTransactionID, err)
	}
	t.RefundedAt = &refundedAt
	return nil
}

// RejectRefund closes a refund request without contacting the gateway and
// keeps the admin note with it.
func (s *AfterSalesService) RejectRefund(ctx context.Context, itemID uuid.UUID, note string) (*models.OrderItem, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id = ? AND refund_status = ?", itemID, models.RefundStatusRequested).
		Updates(map[string]any{
			"refund_status":       models.RefundStatusRejected,
			"refund_process_date": now,
			"refund_note":         note,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("reject refund: %w", res.Error)
	}

	item, _, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrRefundNotAllowed.withMessage("item has no open refund request").withIDs([]uuid.UUID{itemID})
	}
	logger.InfoContext(ctx, "refund rejected", "item_id", itemID)
	return item, nil
}
