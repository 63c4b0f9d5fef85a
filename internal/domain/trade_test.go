package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTrade(direction string) *Trade {
	return &Trade{
		Direction:        direction,
		Amount:           decimal.NewFromInt(40),
		EntryPrice:       decimal.NewFromInt(100),
		PayoutPercentage: decimal.NewFromInt(85),
		Result:           ResultPending,
	}
}

func TestTrade_Outcome(t *testing.T) {
	tests := []struct {
		direction string
		exit      int64
		want      string
	}{
		{DirectionUp, 101, ResultWin},
		{DirectionUp, 100, ResultLoss},
		{DirectionUp, 99, ResultLoss},
		{DirectionDown, 99, ResultWin},
		{DirectionDown, 100, ResultLoss},
		{DirectionDown, 101, ResultLoss},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.direction, tt.exit), func(t *testing.T) {
			assert.Equal(t, tt.want, newTrade(tt.direction).Outcome(decimal.NewFromInt(tt.exit)))
		})
	}
}

func TestTrade_Payout(t *testing.T) {
	trade := newTrade(DirectionUp)

	assert.True(t, trade.Payout(ResultWin, PayoutPrincipalPlusProfit).Equal(decimal.NewFromInt(74)))
	assert.True(t, trade.Payout(ResultWin, PayoutProfitOnly).Equal(decimal.NewFromInt(34)))
	assert.True(t, trade.Payout(ResultLoss, PayoutPrincipalPlusProfit).IsZero())
	assert.True(t, trade.Payout(ResultLoss, PayoutProfitOnly).IsZero())
}

func TestTrade_IsExpired(t *testing.T) {
	now := time.Now()
	trade := &Trade{ExpiresAt: now}

	assert.True(t, trade.IsExpired(now))
	assert.True(t, trade.IsExpired(now.Add(time.Second)))
	assert.False(t, trade.IsExpired(now.Add(-time.Second)))
}

func TestError_MatchesKind(t *testing.T) {
	cause := errors.New("pool closed")
	err := fmt.Errorf("placing trade: %w", NewDependencyError("failed to save trade", cause))

	assert.ErrorIs(t, err, ErrDependency)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "failed to save trade", Message(err, "fallback"))
	assert.Equal(t, "fallback", Message(cause, "fallback"))
}

func TestKindOf_UsesOutermostDomainError(t *testing.T) {
	storeConflict := fmt.Errorf("failed to save trade: %w: trades_pkey", ErrConflict)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"dependency over conflict", NewDependencyError("failed to create trade", storeConflict), ErrDependency},
		{"dependency over not found", NewDependencyError("failed to load user", fmt.Errorf("no rows: %w", ErrNotFound)), ErrDependency},
		{"wrapped domain error", fmt.Errorf("settling: %w", NewConflictError("trade already settled")), ErrConflict},
		{"bare sentinel", fmt.Errorf("lookup: %w", ErrNotFound), ErrNotFound},
		{"unclassified", errors.New("boom"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestArbitrageSetting_Validate(t *testing.T) {
	valid := func() *ArbitrageSetting {
		return &ArbitrageSetting{
			Name:             "majors",
			MinProfitPercent: decimal.RequireFromString("0.5"),
			MaxTradeAmount:   decimal.NewFromInt(1000),
			Pairs:            []string{"BTC/USDT"},
			IntervalSeconds:  30,
		}
	}
	assert.NoError(t, valid().Validate())

	tests := map[string]func(s *ArbitrageSetting){
		"no name":         func(s *ArbitrageSetting) { s.Name = "" },
		"negative profit": func(s *ArbitrageSetting) { s.MinProfitPercent = decimal.NewFromInt(-1) },
		"zero amount":     func(s *ArbitrageSetting) { s.MaxTradeAmount = decimal.Zero },
		"no pairs":        func(s *ArbitrageSetting) { s.Pairs = nil },
		"zero interval":   func(s *ArbitrageSetting) { s.IntervalSeconds = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := valid()
			mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrValidation)
		})
	}
}
