package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
	"tradedesk/internal/repository/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedUser creates a user whose balance is booked through the ledger
func seedUser(t *testing.T, store *memory.Store, wallet *WalletService, username, balance string) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{
		ID:        uuid.New(),
		Username:  username,
		Role:      domain.RoleUser,
		Status:    domain.UserStatusActive,
		KYCStatus: domain.KYCNone,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	if b := dec(balance); b.IsPositive() {
		require.NoError(t, wallet.Credit(context.Background(), u.ID, b, "seed"))
		u.Balance = b
	}
	return u
}

func balanceOf(t *testing.T, store *memory.Store, id uuid.UUID) decimal.Decimal {
	t.Helper()
	u, err := store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

func ledgerOf(t *testing.T, store *memory.Store, id uuid.UUID) []*domain.LedgerEntry {
	t.Helper()
	entries, err := store.Ledger().GetByUserID(context.Background(), id, 0)
	require.NoError(t, err)
	return entries
}

type failingOracle struct{}

func (failingOracle) GetPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("feed down")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *recordingNotifier) record(event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) SendTicketCreated(_ context.Context, _ *domain.Ticket, _ *domain.User, _ string) error {
	return n.record("ticket_created")
}

func (n *recordingNotifier) SendTicketMessage(_ context.Context, _ *domain.Ticket, _ *domain.User, _ *domain.TicketMessage) error {
	return n.record("ticket_message")
}

func (n *recordingNotifier) SendKYCSubmitted(_ context.Context, _ *domain.KYCSubmission, _ *domain.User) error {
	return n.record("kyc_submitted")
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
