package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/models"
)

// OrderService reads a buyer's orders and moves orders through fulfilment.
type OrderService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db, now: time.Now}
}

// ListOrders returns one page of the user's orders, newest first, with the total count.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	if err := query.
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// GetOrder returns one of the user's orders by its order number.
func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items.Transactions").
		Preload("Address").
		Where("order_number = ? AND user_id = ?", orderNumber, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return &order, nil
}

// ShipOrder moves a PROCESSING order to SHIPPED.
func (s *OrderService) ShipOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, models.OrderStatusProcessing, models.OrderStatusShipped, "shipped_at")
}

// CompleteOrder marks a SHIPPED order as delivered, which opens the refund window.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, models.OrderStatusShipped, models.OrderStatusCompleted, "delivered_at")
}

func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, stampColumn string) (*models.Order, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND is_cancelled = ?", orderID, from, false).
		Updates(map[string]any{
			"status":    to,
			stampColumn: s.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update order status: %w", res.Error)
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	if res.RowsAffected == 0 {
		return nil, ErrStatusTransition.withMessage("order is %s, expected %s", order.Status, from)
	}

	logger.InfoContext(ctx, "order status changed", "order_number", order.OrderNumber, "from", from, "to", to)
	return &order, nil
}

// OrderFilter narrows the admin order listing. Empty fields match everything.
type OrderFilter struct {
	Status       models.OrderStatus
	RefundStatus models.RefundStatus
	Search       string
}

// ListAllOrders returns one page of every buyer's orders for back-office use.
func (s *OrderService) ListAllOrders(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RefundStatus != "" {
		query = query.Where("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.refund_status = ?)", filter.RefundStatus)
	}
	if filter.Search != "" {
		like := "%" + escapeLike(filter.Search) + "%"
		query = query.Where("order_number ILIKE ? OR payment_id ILIKE ?", like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	if err := query.
		Preload("Items").
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// OrderStats is the back-office dashboard summary.
type OrderStats struct {
	TotalOrders    int64                        `json:"total_orders"`
	OrdersByStatus map[models.OrderStatus]int64 `json:"orders_by_status"`
	Revenue        decimal.Decimal              `json:"revenue"`
	PendingRefunds int64                        `json:"pending_refunds"`
}

// Stats aggregates order counts and paid revenue of orders that were not cancelled.
func (s *OrderService) Stats(ctx context.Context) (*OrderStats, error) {
	db := s.db.WithContext(ctx)
	stats := &OrderStats{OrdersByStatus: map[models.OrderStatus]int64{}}

	var counts []struct {
		Status models.OrderStatus
		Count  int64
	}
	if err := db.Model(&models.Order{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	for _, c := range counts {
		stats.OrdersByStatus[c.Status] = c.Count
		stats.TotalOrders += c.Count
	}

	var revenue struct {
		Revenue decimal.Decimal
	}
	if err := db.Model(&models.Order{}).
		Where("payment_status = ? AND is_cancelled = ?", models.PaymentStatusSuccess, false).
		Select("COALESCE(SUM(paid_price), 0) AS revenue").
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	stats.Revenue = revenue.Revenue

	if err := db.Model(&models.OrderItem{}).
		Where("refund_status = ?", models.RefundStatusRequested).
		Count(&stats.PendingRefunds).Error; err != nil {
		return nil, fmt.Errorf("count refund requests: %w", err)
	}
	return stats, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
