package dto

import (
	"github.com/shopspring/decimal"
)

// PlaceTradeRequest opens a binary-options trade
type PlaceTradeRequest struct {
	Pair      string          `json:"pair"`
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Duration  int             `json:"duration"` // seconds
}

// SettleRequest declares the result of a trade
type SettleRequest struct {
	Result string `json:"result"`
}

// PayoutRequest sets the payout percentage for new trades
type PayoutRequest struct {
	Percentage decimal.Decimal `json:"percentage"`
}

// ArbitrageSettingRequest creates or replaces an arbitrage setting
type ArbitrageSettingRequest struct {
	Name             string          `json:"name"`
	MinProfitPercent decimal.Decimal `json:"min_profit_percent"`
	MaxTradeAmount   decimal.Decimal `json:"max_trade_amount"`
	Pairs            []string        `json:"pairs"`
	IntervalSeconds  int             `json:"interval_seconds"`
	IsActive         *bool           `json:"is_active"`
}
