package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// OrderHandler manages buyer order endpoints.
type OrderHandler struct {
	orders *services.OrderService
	locale string
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService, locale string) *OrderHandler {
	return &OrderHandler{orders: orders, locale: locale}
}

// ListOrders returns the authenticated user's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.UserContext(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return writeError(c, err, h.locale)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns one order of the authenticated user by order number.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	order, err := h.orders.GetOrder(c.UserContext(), userID, c.Params("orderNumber"))
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}
