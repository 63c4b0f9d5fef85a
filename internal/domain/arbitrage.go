package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ArbitrageSetting is a named strategy configuration for the simulated arbitrage feed
type ArbitrageSetting struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	MinProfitPercent decimal.Decimal `json:"min_profit_percent"`
	MaxTradeAmount   decimal.Decimal `json:"max_trade_amount"`
	Pairs            []string        `json:"pairs"`
	IntervalSeconds  int             `json:"interval_seconds"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ArbitrageTrade is one generated opportunity. It never touches user balances.
type ArbitrageTrade struct {
	ID            uuid.UUID       `json:"id"`
	SettingID     uuid.UUID       `json:"setting_id"`
	Pair          string          `json:"pair"`
	BuyExchange   string          `json:"buy_exchange"`
	SellExchange  string          `json:"sell_exchange"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	Amount        decimal.Decimal `json:"amount"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
}

// ArbitrageStatus constants
const (
	ArbitragePending = "pending"
	ArbitrageProfit  = "profit"
	ArbitrageLoss    = "loss"
)

// Validate checks the setting's ranges
func (s *ArbitrageSetting) Validate() error {
	if s.Name == "" {
		return NewValidationError("name is required")
	}
	if s.MinProfitPercent.IsNegative() {
		return NewValidationError("min_profit_percent must not be negative")
	}
	if !s.MaxTradeAmount.IsPositive() {
		return NewValidationError("max_trade_amount must be positive")
	}
	if len(s.Pairs) == 0 {
		return NewValidationError("at least one trading pair is required")
	}
	if s.IntervalSeconds <= 0 {
		return NewValidationError("interval_seconds must be positive")
	}
	return nil
}
