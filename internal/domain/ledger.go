package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is an immutable record of one balance-affecting event
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"` // signed: debits are negative
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	ReferenceID    *uuid.UUID      `json:"reference_id,omitempty"`
	CounterpartyID *uuid.UUID      `json:"counterparty_id,omitempty"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LedgerEntry types
const (
	EntryDeposit         = "deposit"
	EntryWithdraw        = "withdraw"
	EntryTradeLoss       = "trade_loss"
	EntryTradeWin        = "trade_win"
	EntryTradeRefund     = "trade_refund"
	EntryTransferIn      = "transfer_in"
	EntryTransferOut     = "transfer_out"
	EntryAdminAdjustment = "admin_adjustment"
)

// BalanceChange is the before/after pair returned by a conditional balance update
type BalanceChange struct {
	Before decimal.Decimal
	After  decimal.Decimal
}

// Delta returns After - Before
func (c BalanceChange) Delta() decimal.Decimal {
	return c.After.Sub(c.Before)
}

// NewLedgerEntry builds an entry for change, stamped at now
func NewLedgerEntry(userID uuid.UUID, entryType string, change BalanceChange, ref *uuid.UUID, description string, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          entryType,
		Amount:        change.Delta(),
		BalanceBefore: change.Before,
		BalanceAfter:  change.After,
		ReferenceID:   ref,
		Description:   description,
		CreatedAt:     now,
	}
}

// Reconciliation compares the stored balance with the latest ledger entry
type Reconciliation struct {
	UserID        uuid.UUID        `json:"user_id"`
	Balance       decimal.Decimal  `json:"balance"`
	LedgerBalance *decimal.Decimal `json:"ledger_balance,omitempty"`
	Consistent    bool             `json:"consistent"`
}
