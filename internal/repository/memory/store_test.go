package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
)

func newUser(username string) *domain.User {
	now := time.Now()
	return &domain.User{
		ID:        uuid.New(),
		Username:  username,
		Role:      domain.RoleUser,
		Status:    domain.UserStatusActive,
		KYCStatus: domain.KYCNone,
		Balance:   decimal.NewFromInt(10),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUserRepo_UsernamesAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	require.NoError(t, users.Create(ctx, newUser("alice")))
	require.NoError(t, users.Create(ctx, newUser("Alice")))
	assert.ErrorIs(t, users.Create(ctx, newUser("alice")), domain.ErrConflict)

	u, err := users.GetByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Username)

	_, err = users.GetByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_WritesFailOnDoneContext(t *testing.T) {
	store := NewStore()
	u := newUser("alice")
	require.NoError(t, store.Users().Create(context.Background(), u))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Users().AdjustBalance(ctx, u.ID, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, context.Canceled)

	trade := &domain.Trade{ID: uuid.New(), UserID: u.ID, Result: domain.ResultPending}
	assert.ErrorIs(t, store.Trades().Save(ctx, trade), context.Canceled)
	assert.ErrorIs(t, store.Trades().Settle(ctx, trade), context.Canceled)

	entry := domain.NewLedgerEntry(u.ID, domain.EntryDeposit, domain.BalanceChange{}, nil, "deposit", time.Now())
	assert.ErrorIs(t, store.Ledger().Append(ctx, entry), context.Canceled)

	got, err := store.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10)))

	entries, err := store.Ledger().GetByUserID(context.Background(), u.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
