package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

// UserOutput represents user details in API responses
type UserOutput struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email,omitempty"`
	Role      string          `json:"role"`
	Status    string          `json:"status"`
	KYCStatus string          `json:"kyc_status"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewUserOutput converts a domain user
func NewUserOutput(u *domain.User) *UserOutput {
	return &UserOutput{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		KYCStatus: u.KYCStatus,
		Balance:   u.Balance,
		CreatedAt: u.CreatedAt,
	}
}

// NewUserOutputs converts a list of domain users
func NewUserOutputs(users []*domain.User) []*UserOutput {
	out := make([]*UserOutput, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserOutput(u))
	}
	return out
}

// TransferRequest moves funds to another user
type TransferRequest struct {
	ToUsername string          `json:"toUsername"`
	Amount     decimal.Decimal `json:"amount"`
}

// UpdateStatusRequest changes an account status
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AdjustBalanceRequest is a signed manual balance adjustment
type AdjustBalanceRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}
