package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// PaymentHandler serves checkout, 3-D Secure and after-sales endpoints.
type PaymentHandler struct {
	checkout    *services.CheckoutService
	afterSales  *services.AfterSalesService
	frontendURL string
	locale      string
}

func NewPaymentHandler(checkout *services.CheckoutService, afterSales *services.AfterSalesService, frontendURL, locale string) *PaymentHandler {
	return &PaymentHandler{
		checkout:    checkout,
		afterSales:  afterSales,
		frontendURL: frontendURL,
		locale:      locale,
	}
}

type guestRequest struct {
	FirstName      string                `json:"firstName"`
	LastName       string                `json:"lastName"`
	Email          string                `json:"email"`
	Phone          string                `json:"phone"`
	IdentityNumber string                `json:"identityNumber"`
	Address        services.GuestAddress `json:"address"`
}

type checkoutRequest struct {
	Card         services.CardDetails  `json:"card"`
	AddressID    string                `json:"addressId"`
	Guest        *guestRequest         `json:"guest"`
	Basket       []services.BasketLine `json:"basket"`
	DiscountCode string                `json:"discountCode"`
}

// toCheckout picks the buyer identity: a logged-in caller pays with a saved
// address, anyone else must supply guest details.
func (r checkoutRequest) toCheckout(c *fiber.Ctx) (services.CheckoutRequest, error) {
	out := services.CheckoutRequest{
		Card:         r.Card,
		Lines:        r.Basket,
		DiscountCode: r.DiscountCode,
		IP:           c.IP(),
	}

	if userID, ok := middleware.GetCurrentUserID(c); ok {
		addressID, err := uuid.Parse(r.AddressID)
		if err != nil {
			return out, services.ValidationError("addressId is required")
		}
		out.Buyer = services.AuthenticatedBuyer{UserID: userID, AddressID: addressID}
		return out, nil
	}

	if r.Guest == nil {
		return out, services.ValidationError("guest details are required")
	}
	out.Buyer = services.GuestBuyer{
		FirstName:      r.Guest.FirstName,
		LastName:       r.Guest.LastName,
		Email:          r.Guest.Email,
		Phone:          r.Guest.Phone,
		IdentityNumber: r.Guest.IdentityNumber,
		Address:        r.Guest.Address,
	}
	return out, nil
}

func (h *PaymentHandler) parseCheckout(c *fiber.Ctx) (services.CheckoutRequest, error) {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return services.CheckoutRequest{}, services.ValidationError("invalid request body")
	}
	return req.toCheckout(c)
}

// BinCheck returns card metadata for the first six digits.
func (h *PaymentHandler) BinCheck(c *fiber.Ctx) error {
	var req struct {
		BinNumber string `json:"binNumber"`
	}
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, services.ValidationError("invalid request body"), h.locale)
	}

	resp, err := h.checkout.CheckBin(c.UserContext(), req.BinNumber)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"binNumber":       resp.BinNumber,
			"cardType":        resp.CardType,
			"cardAssociation": resp.CardAssociation,
			"cardFamily":      resp.CardFamily,
			"bankName":        resp.BankName,
			"commercial":      resp.Commercial == 1,
		},
	})
}

// QuoteBasket returns unit prices and the total for a basket.
func (h *PaymentHandler) QuoteBasket(c *fiber.Ctx) error {
	var req struct {
		Basket []services.BasketLine `json:"basket"`
	}
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, services.ValidationError("invalid request body"), h.locale)
	}

	basket, err := h.checkout.QuoteBasket(c.UserContext(), req.Basket)
	if err != nil {
		return writeError(c, err, h.locale)
	}

	lines := make([]fiber.Map, 0, len(basket.Lines))
	for _, l := range basket.Lines {
		lines = append(lines, fiber.Map{
			"variantId": l.Variant.ID,
			"label":     l.Variant.Label(),
			"quantity":  l.Quantity,
			"unitPrice": l.UnitPrice,
			"lineTotal": l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"lines": lines,
			"total": basket.Total,
		},
	})
}

// CheckDiscount validates a code against the basket without consuming it.
func (h *PaymentHandler) CheckDiscount(c *fiber.Ctx) error {
	var req struct {
		Code   string                `json:"code"`
		Basket []services.BasketLine `json:"basket"`
	}
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, services.ValidationError("invalid request body"), h.locale)
	}

	applied, err := h.checkout.CheckDiscount(c.UserContext(), req.Code, req.Basket)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"discountType":   applied.DiscountType,
		"discountAmount": applied.DiscountAmount,
	})
}

// PayNon3DS charges the card directly.
func (h *PaymentHandler) PayNon3DS(c *fiber.Ctx) error {
	req, err := h.parseCheckout(c)
	if err != nil {
		return writeError(c, err, h.locale)
	}

	outcome, err := h.checkout.PayNon3DS(c.UserContext(), req)
	if err != nil {
		return writeError(c, err, h.locale)
	}

	switch o := outcome.(type) {
	case services.Approved:
		return c.JSON(fiber.Map{
			"success":     true,
			"status":      "success",
			"message":     "payment completed",
			"orderNumber": o.Order.OrderNumber,
			"redirectUrl": h.orderURL(o.Order.OrderNumber),
		})
	case services.Declined:
		return h.declined(c, o)
	case services.ChallengeRequired:
		return writeError(c, services.ErrInternal, h.locale)
	default:
		return writeError(c, services.ErrInternal, h.locale)
	}
}

// Initialize3DS starts a 3-D Secure payment and returns the issuer page.
func (h *PaymentHandler) Initialize3DS(c *fiber.Ctx) error {
	req, err := h.parseCheckout(c)
	if err != nil {
		return writeError(c, err, h.locale)
	}

	outcome, err := h.checkout.Initialize3DS(c.UserContext(), req)
	if err != nil {
		return writeError(c, err, h.locale)
	}

	switch o := outcome.(type) {
	case services.ChallengeRequired:
		c.Type("html", "utf-8")
		return c.SendString(o.HTML)
	case services.Declined:
		return h.declined(c, o)
	case services.Approved:
		return writeError(c, services.ErrInternal, h.locale)
	default:
		return writeError(c, services.ErrInternal, h.locale)
	}
}

// Callback3DS is where the issuer returns the browser after the challenge.
// It always answers with a redirect to the storefront.
func (h *PaymentHandler) Callback3DS(c *fiber.Ctx) error {
	cb := services.ThreeDSCallback{
		Token:            c.Query("token"),
		Status:           c.FormValue("status"),
		MDStatus:         c.FormValue("mdStatus"),
		PaymentID:        c.FormValue("paymentId"),
		ConversationData: c.FormValue("conversationData"),
	}

	outcome, err := h.checkout.Complete3DS(c.UserContext(), cb)
	if err != nil {
		_, body := statusFor(err, h.locale)
		if body.Code == codeInternal || body.Code == codePaymentFailed {
			logger.ErrorContext(c.UserContext(), "3ds callback failed", "error", err)
		}
		return c.Redirect(h.checkoutErrorURL(body.Code), fiber.StatusSeeOther)
	}

	switch o := outcome.(type) {
	case services.Approved:
		return c.Redirect(h.orderURL(o.Order.OrderNumber), fiber.StatusSeeOther)
	case services.Declined:
		return c.Redirect(h.checkoutErrorURL(o.Err.ErrorCode), fiber.StatusSeeOther)
	default:
		return c.Redirect(h.checkoutErrorURL(codeInternal), fiber.StatusSeeOther)
	}
}

type cancelOrderRequest struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
}

// CancelOrder cancels one of the caller's orders placed today.
func (h *PaymentHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req cancelOrderRequest
	if err := c.BodyParser(&req); err != nil || req.PaymentID == "" {
		return writeError(c, services.ValidationError("paymentId is required"), h.locale)
	}

	order, err := h.afterSales.CancelOrder(c.UserContext(), userID, req.PaymentID, req.Reason, c.IP())
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"status":      "success",
		"message":     "order cancelled",
		"orderNumber": order.OrderNumber,
	})
}

type refundItemsRequest struct {
	PaymentID string      `json:"paymentId"`
	ItemIDs   []uuid.UUID `json:"itemIds"`
	Reason    string      `json:"reason"`
}

// RefundOrderItems opens refund requests for items of a delivered order.
func (h *PaymentHandler) RefundOrderItems(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req refundItemsRequest
	if err := c.BodyParser(&req); err != nil || req.PaymentID == "" {
		return writeError(c, services.ValidationError("paymentId is required"), h.locale)
	}

	items, err := h.afterSales.RequestRefund(c.UserContext(), userID, req.PaymentID, req.ItemIDs, req.Reason)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"status":  "success",
		"message": "refund requested",
		"data":    items,
	})
}

func (h *PaymentHandler) declined(c *fiber.Ctx, d services.Declined) error {
	return c.Status(fiber.StatusPaymentRequired).JSON(errorBody{
		Status:  "failure",
		Code:    d.Err.ErrorCode,
		Message: d.Message,
	})
}

func (h *PaymentHandler) orderURL(orderNumber string) string {
	return h.frontendURL + "/order/" + url.PathEscape(orderNumber)
}

func (h *PaymentHandler) checkoutErrorURL(code string) string {
	return h.frontendURL + "/checkout?error=" + url.QueryEscape(code)
}
