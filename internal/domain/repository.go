package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user. A duplicate username returns ErrConflict.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetAll retrieves all users
	GetAll(ctx context.Context) ([]*User, error)

	// AdjustBalance adds delta (negative to debit) to the balance in a single
	// conditional update. It never lets the balance go negative: such an
	// update affects no rows and returns ErrInsufficientFunds.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (BalanceChange, error)

	// UpdateStatus updates the account status
	UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error

	// UpdateKYCStatus updates the user's KYC status
	UpdateKYCStatus(ctx context.Context, userID uuid.UUID, status string) error

	// GetStats returns aggregate user figures for the admin console
	GetStats(ctx context.Context) (*UserStats, error)
}

// UserStats holds aggregate user figures
type UserStats struct {
	TotalUsers   int             `json:"total_users"`
	ActiveUsers  int             `json:"active_users"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

// TradeRepository defines the interface for trade operations
type TradeRepository interface {
	// Save creates a new trade
	Save(ctx context.Context, trade *Trade) error

	// GetByID retrieves a trade by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Trade, error)

	// GetByUserID retrieves a user's trades, newest first
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*Trade, error)

	// GetByResult retrieves trades with the given result, newest first
	GetByResult(ctx context.Context, result string, limit int) ([]*Trade, error)

	// GetExpiredPending retrieves pending trades whose expiry is at or before now
	GetExpiredPending(ctx context.Context, now time.Time) ([]*Trade, error)

	// Settle writes result, profit/loss, exit price and settlement time only
	// if the trade is still pending. Returns ErrConflict if it is not.
	Settle(ctx context.Context, trade *Trade) error

	// CountPending counts trades awaiting settlement
	CountPending(ctx context.Context) (int, error)
}

// LedgerRepository is append-only: there is no update or delete
type LedgerRepository interface {
	// Append writes a new entry
	Append(ctx context.Context, entry *LedgerEntry) error

	// GetByUserID retrieves a user's entries, newest first
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*LedgerEntry, error)

	// GetLatest retrieves the user's most recent entry, ErrNotFound if none
	GetLatest(ctx context.Context, userID uuid.UUID) (*LedgerEntry, error)
}

// ArbitrageRepository defines the interface for the simulated arbitrage feed
type ArbitrageRepository interface {
	SaveSetting(ctx context.Context, setting *ArbitrageSetting) error
	UpdateSetting(ctx context.Context, setting *ArbitrageSetting) error
	GetSetting(ctx context.Context, id uuid.UUID) (*ArbitrageSetting, error)
	ListSettings(ctx context.Context, activeOnly bool) ([]*ArbitrageSetting, error)

	SaveTrade(ctx context.Context, trade *ArbitrageTrade) error
	GetTrade(ctx context.Context, id uuid.UUID) (*ArbitrageTrade, error)
	ListTrades(ctx context.Context, limit int) ([]*ArbitrageTrade, error)

	// SettleTrade resolves a pending arbitrage trade. Returns ErrConflict if
	// it is no longer pending.
	SettleTrade(ctx context.Context, id uuid.UUID, status string, settledAt time.Time) error
}

// KYCRepository defines the interface for KYC submissions
type KYCRepository interface {
	Save(ctx context.Context, submission *KYCSubmission) error
	GetByID(ctx context.Context, id uuid.UUID) (*KYCSubmission, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*KYCSubmission, error)
	GetByStatus(ctx context.Context, status string, limit int) ([]*KYCSubmission, error)

	// Review records the decision only if the submission is still pending.
	// Returns ErrConflict otherwise.
	Review(ctx context.Context, submission *KYCSubmission) error
}

// TicketRepository defines the interface for support tickets
type TicketRepository interface {
	Save(ctx context.Context, ticket *Ticket) error
	AddMessage(ctx context.Context, message *TicketMessage) error

	// GetByID retrieves a ticket with its messages in chronological order
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Ticket, error)
	GetByStatus(ctx context.Context, status string, limit int) ([]*Ticket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Setting keys
const (
	SettingPayoutPercentage = "trade_payout_percentage"
)

// SettingsRepository stores system-wide key/value settings
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	GetAll(ctx context.Context) (map[string]string, error)
}
