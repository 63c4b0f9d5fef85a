package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade represents a binary-options wager on the direction of a pair
type Trade struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Pair             string           `json:"pair"`
	Direction        string           `json:"direction"`
	Amount           decimal.Decimal  `json:"amount"`
	EntryPrice       decimal.Decimal  `json:"entry_price"`
	ExitPrice        *decimal.Decimal `json:"exit_price,omitempty"`
	DurationSeconds  int              `json:"duration"`
	ExpiresAt        time.Time        `json:"expires_at"`
	PayoutPercentage decimal.Decimal  `json:"payout_percentage"`
	Result           string           `json:"result"`
	ProfitLoss       decimal.Decimal  `json:"profit_loss"`
	SettledBy        *string          `json:"settled_by,omitempty"`
	SettledAt        *time.Time       `json:"settled_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Direction constants
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// TradeResult constants
const (
	ResultPending = "pending"
	ResultWin     = "win"
	ResultLoss    = "loss"
)

// SettledBy constants (who resolved the trade)
const (
	SettledByAuto  = "auto"
	SettledByAdmin = "admin"
)

// PayoutFormula selects how a winning trade's credit is computed.
type PayoutFormula int

const (
	// PayoutPrincipalPlusProfit returns the stake plus profit:
	// amount × (1 + payout/100). Used by automatic settlement.
	PayoutPrincipalPlusProfit PayoutFormula = iota
	// PayoutProfitOnly credits only the profit: amount × payout/100.
	// Used by admin-declared settlement of binary trades.
	PayoutProfitOnly
)

func (f PayoutFormula) String() string {
	switch f {
	case PayoutPrincipalPlusProfit:
		return "principal_plus_profit"
	case PayoutProfitOnly:
		return "profit_only"
	}
	return "unknown"
}

var hundred = decimal.NewFromInt(100)

// IsPending reports whether the trade is still awaiting settlement
func (t *Trade) IsPending() bool {
	return t.Result == ResultPending
}

// IsExpired reports whether the trade's expiry has passed at now
func (t *Trade) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Outcome prices the trade against exitPrice. Equal prices lose.
func (t *Trade) Outcome(exitPrice decimal.Decimal) string {
	switch t.Direction {
	case DirectionUp:
		if exitPrice.GreaterThan(t.EntryPrice) {
			return ResultWin
		}
	case DirectionDown:
		if exitPrice.LessThan(t.EntryPrice) {
			return ResultWin
		}
	}
	return ResultLoss
}

// Payout computes the balance credit for result under formula. Losses pay zero.
func (t *Trade) Payout(result string, formula PayoutFormula) decimal.Decimal {
	if result != ResultWin {
		return decimal.Zero
	}
	rate := t.PayoutPercentage.Div(hundred)
	switch formula {
	case PayoutProfitOnly:
		return t.Amount.Mul(rate).Round(8)
	default:
		return t.Amount.Mul(decimal.NewFromInt(1).Add(rate)).Round(8)
	}
}

// ValidDirection reports whether d is up or down
func ValidDirection(d string) bool {
	return d == DirectionUp || d == DirectionDown
}

// ValidTerminalResult reports whether r is a settled result
func ValidTerminalResult(r string) bool {
	return r == ResultWin || r == ResultLoss
}
