package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// BuyerService manages the buyer details sent to the gateway at checkout:
// the profile and the saved shipping addresses.
type BuyerService struct {
	db *gorm.DB
}

func NewBuyerService(db *gorm.DB) *BuyerService {
	return &BuyerService{db: db}
}

// ProfileUpdate holds the profile fields to change. Nil fields are kept.
type ProfileUpdate struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Phone          *string `json:"phone"`
	IdentityNumber *string `json:"identity_number"`
}

// AddressInput is a saved address as submitted by the buyer.
type AddressInput struct {
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	City        string `json:"city"`
	Country     string `json:"country"`
	AddressLine string `json:"address_line"`
	ZipCode     string `json:"zip_code"`
}

func (in AddressInput) validate() error {
	switch {
	case strings.TrimSpace(in.ContactName) == "":
		return ErrValidation.withMessage("contact name is required")
	case strings.TrimSpace(in.City) == "":
		return ErrValidation.withMessage("city is required")
	case strings.TrimSpace(in.Country) == "":
		return ErrValidation.withMessage("country is required")
	case strings.TrimSpace(in.AddressLine) == "":
		return ErrValidation.withMessage("address line is required")
	}
	return nil
}

// Profile returns the user.
func (s *BuyerService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes the given profile fields.
func (s *BuyerService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (*models.User, error) {
	updates := map[string]any{}
	if in.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.IdentityNumber != nil {
		id := strings.TrimSpace(*in.IdentityNumber)
		if id != "" && (len(id) != 11 || !isDigits(id)) {
			return nil, ErrValidation.withMessage("identity number must have 11 digits")
		}
		updates["identity_number"] = id
	}
	if len(updates) == 0 {
		return nil, ErrValidation.withMessage("no fields to update")
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.Profile(ctx, userID)
}

// ListAddresses returns the user's saved addresses, newest first.
func (s *BuyerService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&addresses).Error; err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addresses, nil
}

// CreateAddress saves a new address for the user.
func (s *BuyerService) CreateAddress(ctx context.Context, userID uuid.UUID, in AddressInput) (*models.Address, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	address := models.Address{
		UserID:      &userID,
		ContactName: strings.TrimSpace(in.ContactName),
		Phone:       strings.TrimSpace(in.Phone),
		City:        strings.TrimSpace(in.City),
		Country:     strings.TrimSpace(in.Country),
		AddressLine: strings.TrimSpace(in.AddressLine),
		ZipCode:     strings.TrimSpace(in.ZipCode),
	}
	if err := s.db.WithContext(ctx).Create(&address).Error; err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	return &address, nil
}

// UpdateAddress replaces the fields of one of the user's addresses.
func (s *BuyerService) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, in AddressInput) (*models.Address, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addressID, userID).
		Updates(map[string]any{
			"contact_name": strings.TrimSpace(in.ContactName),
			"phone":        strings.TrimSpace(in.Phone),
			"city":         strings.TrimSpace(in.City),
			"country":      strings.TrimSpace(in.Country),
			"address_line": strings.TrimSpace(in.AddressLine),
			"zip_code":     strings.TrimSpace(in.ZipCode),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update address: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAddressNotFound
	}

	var address models.Address
	if err := s.db.WithContext(ctx).First(&address, "id = ?", addressID).Error; err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}
	return &address, nil
}

// RemoveAddress detaches the address from the user. Orders shipped to it
// keep referencing the row.
func (s *BuyerService) RemoveAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addressID, userID).
		Update("user_id", nil)
	if res.Error != nil {
		return fmt.Errorf("remove address: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAddressNotFound
	}
	return nil
}
