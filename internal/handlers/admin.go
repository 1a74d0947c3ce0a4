package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	orders     *services.OrderService
	afterSales *services.AfterSalesService
	locale     string
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(orders *services.OrderService, afterSales *services.AfterSalesService, locale string) *AdminHandler {
	return &AdminHandler{orders: orders, afterSales: afterSales, locale: locale}
}

// DashboardStats returns aggregate order statistics.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.orders.Stats(c.UserContext())
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := services.OrderFilter{
		Status:       models.OrderStatus(c.Query("status")),
		RefundStatus: models.RefundStatus(c.Query("refund_status")),
		Search:       c.Query("search"),
	}

	orders, total, err := h.orders.ListAllOrders(c.UserContext(), filter, pg.Limit, pg.Offset)
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

// ShipOrder marks an order as handed to the carrier.
func (h *AdminHandler) ShipOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ValidationError("invalid order id"), h.locale)
	}
	order, err := h.orders.ShipOrder(c.UserContext(), id)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// CompleteOrder marks an order as delivered.
func (h *AdminHandler) CompleteOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ValidationError("invalid order id"), h.locale)
	}
	order, err := h.orders.CompleteOrder(c.UserContext(), id)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// ApproveRefund pays back a requested item refund through the gateway.
func (h *AdminHandler) ApproveRefund(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ValidationError("invalid order item id"), h.locale)
	}
	item, err := h.afterSales.ApproveRefund(c.UserContext(), id, c.IP())
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

// RejectRefund declines a requested item refund.
func (h *AdminHandler) RejectRefund(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ValidationError("invalid order item id"), h.locale)
	}

	var req struct {
		Note string `json:"note"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, services.ValidationError("invalid request body"), h.locale)
		}
	}

	item, err := h.afterSales.RejectRefund(c.UserContext(), id, req.Note)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}
