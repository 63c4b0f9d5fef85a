package usecase

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tradedesk/internal/domain"
	"tradedesk/internal/repository/memory"
	"tradedesk/internal/service"
)

func newWallet(t *testing.T) (*WalletService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewWalletService(store.Users(), store.Ledger(), service.NewAccountLocker(), zaptest.NewLogger(t)), store
}

func TestTransfer_MovesFundsAndWritesPairedEntries(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	b := seedUser(t, store, wallet, "bob", "10")

	balance, err := wallet.Transfer(context.Background(), a.ID, "bob", dec("20"))
	require.NoError(t, err)

	assert.True(t, balance.Equal(dec("30")))
	assert.True(t, balanceOf(t, store, a.ID).Equal(dec("30")))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec("30")))

	out := ledgerOf(t, store, a.ID)[0]
	in := ledgerOf(t, store, b.ID)[0]

	assert.Equal(t, domain.EntryTransferOut, out.Type)
	assert.True(t, out.Amount.Equal(dec("-20")))
	assert.True(t, out.BalanceBefore.Equal(dec("50")))
	assert.True(t, out.BalanceAfter.Equal(dec("30")))
	assert.Equal(t, b.ID, *out.CounterpartyID)

	assert.Equal(t, domain.EntryTransferIn, in.Type)
	assert.True(t, in.Amount.Equal(dec("20")))
	assert.True(t, in.BalanceBefore.Equal(dec("10")))
	assert.True(t, in.BalanceAfter.Equal(dec("30")))
	assert.Equal(t, a.ID, *in.CounterpartyID)

	assert.Equal(t, *out.ReferenceID, *in.ReferenceID)
	assert.Equal(t, out.CreatedAt, in.CreatedAt)
}

func TestTransfer_Validation(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	seedUser(t, store, wallet, "bob", "10")

	_, err := wallet.Transfer(context.Background(), a.ID, "bob", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = wallet.Transfer(context.Background(), a.ID, "bob", dec("-1"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = wallet.Transfer(context.Background(), a.ID, "alice", dec("1"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = wallet.Transfer(context.Background(), a.ID, "nobody", dec("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.True(t, balanceOf(t, store, a.ID).Equal(dec("50")))
}

func TestTransfer_InsufficientFundsChangesNothing(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	b := seedUser(t, store, wallet, "bob", "10")

	_, err := wallet.Transfer(context.Background(), a.ID, "bob", dec("50.00000001"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.True(t, balanceOf(t, store, a.ID).Equal(dec("50")))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec("10")))
	assert.Len(t, ledgerOf(t, store, a.ID), 1)
	assert.Len(t, ledgerOf(t, store, b.ID), 1)
}

func TestTransfer_RecipientCreditFailureRestoresSender(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	b := seedUser(t, store, wallet, "bob", "10")

	store.AdjustBalanceHook = func(id uuid.UUID, _ decimal.Decimal) error {
		if id == b.ID {
			return errors.New("connection reset")
		}
		return nil
	}

	_, err := wallet.Transfer(context.Background(), a.ID, "bob", dec("20"))
	require.ErrorIs(t, err, domain.ErrDependency)

	assert.True(t, balanceOf(t, store, a.ID).Equal(dec("50")))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec("10")))

	rec, err := wallet.Reconcile(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestTransfer_CancelledCallerStillRestoresSender(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	b := seedUser(t, store, wallet, "bob", "10")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.AdjustBalanceHook = func(id uuid.UUID, _ decimal.Decimal) error {
		if id == b.ID {
			cancel()
		}
		return nil
	}

	_, err := wallet.Transfer(ctx, a.ID, "bob", dec("20"))
	require.ErrorIs(t, err, domain.ErrDependency)

	assert.True(t, balanceOf(t, store, a.ID).Equal(dec("50")))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec("10")))

	rec, err := wallet.Reconcile(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestTransfer_EntriesAreWrittenAfterCallerCancels(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	b := seedUser(t, store, wallet, "bob", "10")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.AppendLedgerHook = func(*domain.LedgerEntry) error {
		cancel()
		return nil
	}

	_, err := wallet.Transfer(ctx, a.ID, "bob", dec("20"))
	require.NoError(t, err)

	assert.Equal(t, domain.EntryTransferOut, ledgerOf(t, store, a.ID)[0].Type)
	assert.Equal(t, domain.EntryTransferIn, ledgerOf(t, store, b.ID)[0].Type)

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		rec, err := wallet.Reconcile(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, rec.Consistent)
	}
}

func TestTransfer_FailedCompensationIsLedgered(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	b := seedUser(t, store, wallet, "bob", "10")

	store.AdjustBalanceHook = func(_ uuid.UUID, delta decimal.Decimal) error {
		if delta.IsPositive() {
			return errors.New("connection reset")
		}
		return nil
	}

	_, err := wallet.Transfer(context.Background(), a.ID, "bob", dec("20"))
	require.ErrorIs(t, err, domain.ErrDependency)

	assert.True(t, balanceOf(t, store, a.ID).Equal(dec("30")))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec("10")))

	out := ledgerOf(t, store, a.ID)[0]
	assert.Equal(t, domain.EntryTransferOut, out.Type)
	assert.Equal(t, b.ID, *out.CounterpartyID)

	rec, err := wallet.Reconcile(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestTransfer_ConcurrentTransfersConserveTotal(t *testing.T) {
	wallet, store := newWallet(t)
	users := []*domain.User{
		seedUser(t, store, wallet, "u1", "100"),
		seedUser(t, store, wallet, "u2", "100"),
		seedUser(t, store, wallet, "u3", "100"),
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				from := users[rnd.Intn(len(users))]
				to := users[rnd.Intn(len(users))]
				amount := decimal.NewFromInt(int64(rnd.Intn(30) + 1))
				_, _ = wallet.Transfer(context.Background(), from.ID, to.Username, amount)
			}
		}(int64(w))
	}
	wg.Wait()

	total := decimal.Zero
	for _, u := range users {
		b := balanceOf(t, store, u.ID)
		assert.False(t, b.IsNegative())
		total = total.Add(b)

		rec, err := wallet.Reconcile(context.Background(), u.ID)
		require.NoError(t, err)
		assert.True(t, rec.Consistent, "user %s", u.Username)
	}
	assert.True(t, total.Equal(dec("300")), "total %s", total)
}

func TestTransfer_SuspendedSender(t *testing.T) {
	wallet, store := newWallet(t)
	a := seedUser(t, store, wallet, "alice", "50")
	seedUser(t, store, wallet, "bob", "10")
	require.NoError(t, store.Users().UpdateStatus(context.Background(), a.ID, domain.UserStatusBanned))

	_, err := wallet.Transfer(context.Background(), a.ID, "bob", dec("1"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAdminAdjust(t *testing.T) {
	wallet, store := newWallet(t)
	admin := uuid.New()
	u := seedUser(t, store, wallet, "alice", "10")

	entry, err := wallet.AdminAdjust(context.Background(), admin, u.ID, dec("5.5"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryAdminAdjustment, entry.Type)
	assert.Equal(t, admin, *entry.CounterpartyID)
	assert.Equal(t, "manual adjustment", entry.Description)
	assert.True(t, balanceOf(t, store, u.ID).Equal(dec("15.5")))

	_, err = wallet.AdminAdjust(context.Background(), admin, u.ID, dec("-15.5"), "chargeback")
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, u.ID).IsZero())

	_, err = wallet.AdminAdjust(context.Background(), admin, u.ID, dec("-1"), "overdraw")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = wallet.AdminAdjust(context.Background(), admin, u.ID, decimal.Zero, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = wallet.AdminAdjust(context.Background(), admin, uuid.New(), dec("1"), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetWallet(t *testing.T) {
	wallet, store := newWallet(t)
	u := seedUser(t, store, wallet, "alice", "10")

	w, err := wallet.GetWallet(context.Background(), u.ID, 50)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("10")))
	require.Len(t, w.Entries, 1)
	assert.Equal(t, domain.EntryDeposit, w.Entries[0].Type)

	empty := seedUser(t, store, wallet, "bob", "0")
	w, err = wallet.GetWallet(context.Background(), empty.ID, 50)
	require.NoError(t, err)
	assert.NotNil(t, w.Entries)
	assert.Empty(t, w.Entries)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	wallet, store := newWallet(t)
	u := seedUser(t, store, wallet, "alice", "10")

	// a balance write that bypasses the ledger
	_, err := store.Users().AdjustBalance(context.Background(), u.ID, dec("1"))
	require.NoError(t, err)

	rec, err := wallet.Reconcile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.True(t, rec.Balance.Equal(dec("11")))
	assert.True(t, rec.LedgerBalance.Equal(dec("10")))

	fresh := seedUser(t, store, wallet, "bob", "0")
	rec, err = wallet.Reconcile(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Nil(t, rec.LedgerBalance)
}
