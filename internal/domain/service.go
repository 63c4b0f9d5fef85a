package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceOracle returns the current market price for a trading pair.
// Implementations return a fallback price for unknown pairs instead of failing.
type PriceOracle interface {
	GetPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// NotificationService pushes operator notifications. Delivery is best-effort.
type NotificationService interface {
	SendTicketCreated(ctx context.Context, ticket *Ticket, user *User, firstMessage string) error
	SendTicketMessage(ctx context.Context, ticket *Ticket, user *User, message *TicketMessage) error
	SendKYCSubmitted(ctx context.Context, submission *KYCSubmission, user *User) error
}
