package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// ProfileHandler manages the buyer profile and saved addresses.
type ProfileHandler struct {
	buyers *services.BuyerService
	locale string
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(buyers *services.BuyerService, locale string) *ProfileHandler {
	return &ProfileHandler{buyers: buyers, locale: locale}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.buyers.Profile(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err, h.locale)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":                  user.ID,
			"email":               user.Email,
			"first_name":          user.FirstName,
			"last_name":           user.LastName,
			"phone":               user.Phone,
			"has_identity_number": user.IdentityNumber != "",
			"created_at":          user.CreatedAt,
			"updated_at":          user.UpdatedAt,
		},
	})
}

// UpdateProfile updates user profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, services.ValidationError("invalid request body"), h.locale)
	}

	if _, err := h.buyers.UpdateProfile(c.UserContext(), userID, req); err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

// Address endpoints

// ListAddresses returns user addresses.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addresses, err := h.buyers.ListAddresses(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

// CreateAddress creates an address for the user.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.AddressInput
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, services.ValidationError("invalid request body"), h.locale)
	}

	address, err := h.buyers.CreateAddress(c.UserContext(), userID, req)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

// UpdateAddress updates a user address.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ValidationError("invalid id"), h.locale)
	}

	var req services.AddressInput
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, services.ValidationError("invalid request body"), h.locale)
	}

	address, err := h.buyers.UpdateAddress(c.UserContext(), userID, addrID, req)
	if err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "data": address})
}

// DeleteAddress removes a user address.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, services.ValidationError("invalid id"), h.locale)
	}

	if err := h.buyers.RemoveAddress(c.UserContext(), userID, addrID); err != nil {
		return writeError(c, err, h.locale)
	}
	return c.JSON(fiber.Map{"success": true, "message": "address deleted"})
}
