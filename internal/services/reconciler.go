package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/models"
)

const (
	orderNumberHashLen   = 10
	compensationTimeout  = 30 * time.Second
	compensationReason   = "other"
	uniqueOrderNumberKey = "order_number"
	uniquePaymentIDKey   = "payment_id"
)

// settlement is the local context of an authorized payment.
type settlement struct {
	userID       *uuid.UUID
	addressID    uuid.UUID
	newAddress   *models.Address
	discountCode string
	ip           string
	basketID     string
	paidPrice    decimal.Decimal
}

// settle verifies an approved gateway response and persists the order. If
// persisting fails the authorization is reversed at the gateway.
func (s *CheckoutService) settle(ctx context.Context, resp *PaymentResponse, st settlement) (*models.Order, error) {
	if err := s.verifier.VerifyPayment(resp); err != nil {
		logger.ErrorContext(ctx, "payment signature mismatch",
			"payment_id", resp.PaymentID, "conversation_id", resp.ConversationID)
		return nil, err
	}
	if resp.BasketID != st.basketID || !paidPriceMatches(st.paidPrice, resp.PaidPrice) {
		logger.ErrorContext(ctx, "payment response does not match checkout",
			"payment_id", resp.PaymentID, "basket_id", resp.BasketID, "paid_price", resp.PaidPrice.String())
		return nil, ErrSignatureMismatch
	}

	order, err := s.reconcile(ctx, resp, st)
	if err != nil {
		s.compensate(ctx, resp, st.ip, err)
		return nil, err
	}

	if s.notifier != nil {
		go func(o *models.Order) {
			nctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.notifier.NotifyOrderPlaced(nctx, o); err != nil {
				logger.Warn("order notification failed", "order_number", o.OrderNumber, "error", err)
			}
		}(order)
	}
	return order, nil
}

// reconcile creates the order with its items and their transactions in one
// transaction that also redeems the discount code and takes the stock. A
// replayed paymentId returns the order that already exists.
func (s *CheckoutService) reconcile(ctx context.Context, resp *PaymentResponse, st settlement) (*models.Order, error) {
	items, err := GroupItemTransactions(resp.ItemTransactions)
	if err != nil {
		return nil, err
	}
	if existing, err := s.recordedOrder(ctx, resp.PaymentID); err != nil || existing != nil {
		return existing, err
	}

	variantIDs := make([]uuid.UUID, len(items))
	for i, item := range items {
		variantIDs[i] = item.VariantID
	}

	var order models.Order
	opts := database.DefaultTxOptions()
	opts.RetryIf = func(err error) bool {
		return database.IsUniqueViolation(err, uniqueOrderNumberKey)
	}

	err = database.WithRetry(ctx, s.db, opts, func(tx *gorm.DB) error {
		now := s.now()
		order = models.Order{
			OrderNumber:     newOrderNumber(now, s.cfg.Location),
			PaymentID:       resp.PaymentID,
			ConversationID:  resp.ConversationID,
			BasketID:        resp.BasketID,
			IP:              st.ip,
			Status:          models.OrderStatusProcessing,
			PaymentStatus:   models.PaymentStatusSuccess,
			PaymentDate:     &now,
			Total:           resp.Price,
			PaidPrice:       resp.PaidPrice,
			Currency:        resp.Currency,
			Installment:     resp.Installment,
			UserID:          st.userID,
			AddressID:       st.addressID,
			CardAssociation: resp.CardAssociation,
			CardFamily:      resp.CardFamily,
			CardType:        resp.CardType,
			BinNumber:       resp.BinNumber,
			LastFourDigits:  resp.LastFourDigits,
			Items:           cloneItems(items),
		}

		if st.newAddress != nil {
			address := *st.newAddress
			address.ID = uuid.Nil
			if err := tx.Create(&address).Error; err != nil {
				return fmt.Errorf("create guest address: %w", err)
			}
			order.AddressID = address.ID
		}

		if st.discountCode != "" {
			codeID, err := s.discounts.redeemCode(ctx, tx, st.discountCode, variantIDs)
			if err != nil {
				return err
			}
			order.DiscountCodeID = &codeID
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return reserveStock(tx, items)
	})
	if err == nil {
		logger.InfoContext(ctx, "order created",
			"order_number", order.OrderNumber, "payment_id", order.PaymentID, "paid_price", order.PaidPrice.String())
		return &order, nil
	}

	if database.IsUniqueViolation(err, uniquePaymentIDKey) {
		existing, loadErr := s.orderByPaymentID(ctx, resp.PaymentID)
		if loadErr != nil {
			return nil, loadErr
		}
		logger.InfoContext(ctx, "order already recorded for payment",
			"order_number", existing.OrderNumber, "payment_id", existing.PaymentID)
		return existing, nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return nil, err
	}
	return nil, ErrInternal.wrap(fmt.Errorf("persist order for payment %s: %w", resp.PaymentID, err))
}

// recordedOrder returns the order already stored for paymentID, or nil.
func (s *CheckoutService) recordedOrder(ctx context.Context, paymentID string) (*models.Order, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("payment_id = ?", paymentID).Count(&n).Error; err != nil {
		return nil, ErrInternal.wrap(fmt.Errorf("look up payment %s: %w", paymentID, err))
	}
	if n == 0 {
		return nil, nil
	}
	existing, err := s.orderByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "order already recorded for payment",
		"order_number", existing.OrderNumber, "payment_id", existing.PaymentID)
	return existing, nil
}

func (s *CheckoutService) orderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items.Transactions").
		Where("payment_id = ?", paymentID).
		First(&order).Error; err != nil {
		return nil, ErrInternal.wrap(fmt.Errorf("load order for payment %s: %w", paymentID, err))
	}
	return &order, nil
}

// compensate cancels an authorization whose order could not be stored.
// Failures are logged for manual follow-up; the original error is what the
// caller sees.
func (s *CheckoutService) compensate(ctx context.Context, resp *PaymentResponse, ip string, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	_, err := s.gateway.Cancel(cctx, CancelRequest{
		Locale:         s.cfg.Locale,
		ConversationID: resp.ConversationID,
		PaymentID:      resp.PaymentID,
		IP:             ip,
		Reason:         compensationReason,
		Description:    "order could not be recorded",
	})
	if err != nil {
		logger.ErrorContext(ctx, "compensating cancel failed, payment needs manual reversal",
			"payment_id", resp.PaymentID, "cause", cause, "error", err)
		return
	}
	logger.WarnContext(ctx, "payment cancelled after failed order creation",
		"payment_id", resp.PaymentID, "cause", cause)
}

// claimTempPayment deletes the continuation for token and returns it, so a
// token can be resumed at most once.
func (s *CheckoutService) claimTempPayment(ctx context.Context, token string) (*models.TempPayment, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	var claimed []models.TempPayment
	res := s.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("token = ?", token).
		Delete(&claimed)
	if res.Error != nil {
		return nil, fmt.Errorf("claim 3ds continuation: %w", res.Error)
	}
	if res.RowsAffected == 0 || len(claimed) == 0 {
		return nil, ErrTokenNotFound
	}
	return &claimed[0], nil
}

// PurgeExpiredTempPayments removes abandoned continuations and the guest
// addresses created for them.
func (s *CheckoutService) PurgeExpiredTempPayments(ctx context.Context) (int64, error) {
	var expired []models.TempPayment
	res := s.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("expires_at <= ?", s.now()).
		Delete(&expired)
	if res.Error != nil {
		return 0, res.Error
	}
	for _, tp := range expired {
		if tp.UserID == nil {
			s.discardGuestAddress(ctx, tp.AddressID)
		}
	}
	return res.RowsAffected, nil
}

// GroupItemTransactions folds per-unit gateway transactions into one order
// item per variant, keeping first-seen order. Each transaction is kept for
// per-transaction refunds.
func GroupItemTransactions(txns []ItemTransaction) ([]models.OrderItem, error) {
	if len(txns) == 0 {
		return nil, ErrInternal.wrap(errors.New("payment response has no item transactions"))
	}

	index := make(map[uuid.UUID]int, len(txns))
	var items []models.OrderItem
	for _, t := range txns {
		variantID, err := uuid.Parse(t.ItemID)
		if err != nil {
			return nil, ErrInternal.wrap(fmt.Errorf("item transaction %s has invalid item id %q", t.PaymentTransactionID, t.ItemID))
		}

		i, ok := index[variantID]
		if !ok {
			i = len(items)
			index[variantID] = i
			items = append(items, models.OrderItem{
				VariantID:            variantID,
				Price:                t.Price,
				PaidPrice:            decimal.Zero,
				TotalPrice:           decimal.Zero,
				MerchantPayoutAmount: decimal.Zero,
				RefundStatus:         models.RefundStatusNone,
				RefundAmount:         decimal.Zero,
			})
		}

		item := &items[i]
		item.Quantity++
		item.PaidPrice = item.PaidPrice.Add(t.PaidPrice)
		item.TotalPrice = item.TotalPrice.Add(t.Price)
		item.MerchantPayoutAmount = item.MerchantPayoutAmount.Add(t.MerchantPayoutAmount)
		item.Transactions = append(item.Transactions, models.OrderItemTransaction{
			PaymentTransactionID: t.PaymentTransactionID,
			Price:                t.Price,
			PaidPrice:            t.PaidPrice,
			MerchantPayoutAmount: t.MerchantPayoutAmount,
		})
	}
	return items, nil
}

// cloneItems copies items so a retried transaction starts from fresh rows.
func cloneItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	for i, item := range items {
		item.ID = uuid.Nil
		txns := make([]models.OrderItemTransaction, len(item.Transactions))
		for j, t := range item.Transactions {
			t.ID = uuid.Nil
			txns[j] = t
		}
		item.Transactions = txns
		out[i] = item
	}
	return out
}

// newOrderNumber is YYMMDD in loc followed by the first hex characters of
// SHA-256(unix nanos + random bytes), uppercased.
func newOrderNumber(now time.Time, loc *time.Location) string {
	var salt [8]byte
	if _, err := rand.Read(salt[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	sum := sha256.Sum256([]byte(strconv.FormatInt(now.UnixNano(), 10) + hex.EncodeToString(salt[:])))
	return now.In(loc).Format("060102") + strings.ToUpper(hex.EncodeToString(sum[:])[:orderNumberHashLen])
}
