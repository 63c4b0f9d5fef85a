package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents an account holder in the system
type User struct {
	ID           uuid.UUID       `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email,omitempty"`
	PasswordHash string          `json:"-"` // Never expose password hash in JSON
	Role         string          `json:"role"`
	Status       string          `json:"status"`
	KYCStatus    string          `json:"kyc_status"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// UserRole constants
const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleMaster = "master"
)

// UserStatus constants
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusBanned    = "banned"
)

// IsStaff reports whether the user may use the admin console
func (u *User) IsStaff() bool {
	return IsStaffRole(u.Role)
}

// IsActive reports whether the user may move funds
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsStaffRole reports whether role grants admin access
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleMaster
}

// ValidUserStatus reports whether status is a known account status
func ValidUserStatus(status string) bool {
	switch status {
	case UserStatusActive, UserStatusSuspended, UserStatusBanned:
		return true
	}
	return false
}
