package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
	"tradedesk/internal/repository/memory"
)

type stubOracle struct {
	mu    sync.Mutex
	price decimal.Decimal
	err   error
	calls int
}

func (o *stubOracle) GetPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.price, o.err
}

func (o *stubOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedUser(t *testing.T, store *memory.Store, balance string) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{
		ID:        uuid.New(),
		Username:  "user-" + uuid.NewString()[:8],
		Role:      domain.RoleUser,
		Status:    domain.UserStatusActive,
		KYCStatus: domain.KYCNone,
		Balance:   dec(balance),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func seedTrade(t *testing.T, store *memory.Store, userID uuid.UUID, direction, amount, entry string, expiresAt time.Time) *domain.Trade {
	t.Helper()
	tr := &domain.Trade{
		ID:               uuid.New(),
		UserID:           userID,
		Pair:             "BTC/USDT",
		Direction:        direction,
		Amount:           dec(amount),
		EntryPrice:       dec(entry),
		DurationSeconds:  60,
		ExpiresAt:        expiresAt,
		PayoutPercentage: dec("85"),
		Result:           domain.ResultPending,
		ProfitLoss:       decimal.Zero,
		CreatedAt:        expiresAt.Add(-time.Minute),
	}
	require.NoError(t, store.Trades().Save(context.Background(), tr))
	return tr
}

func balanceOf(t *testing.T, store *memory.Store, id uuid.UUID) decimal.Decimal {
	t.Helper()
	u, err := store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}
