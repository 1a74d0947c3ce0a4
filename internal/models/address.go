package models

import "github.com/google/uuid"

// Address is either a saved user address or a guest checkout address (nil UserID).
type Address struct {
	BaseModel
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	ContactName string     `json:"contact_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	City        string     `json:"city"`
	Country     string     `json:"country"`
	AddressLine string     `json:"address_line"`
	ZipCode     string     `json:"zip_code"`
}
