package models

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an authenticated customer or administrator.
type User struct {
	BaseModel
	Email          string    `gorm:"uniqueIndex" json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone"`
	IdentityNumber string    `json:"-"`
	Role           string    `gorm:"not null;default:'customer'" json:"role"`
	Addresses      []Address `json:"addresses,omitempty"`
	Orders         []Order   `json:"orders,omitempty"`
}
