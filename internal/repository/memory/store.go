// Package memory implements the domain repositories in process memory with
// the same conditional-update semantics as the Postgres repositories. It backs
// local runs without DATABASE_URL and the service tests. Writes fail once
// their context is done, as pgx calls do.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

// Store holds every table behind one mutex
type Store struct {
	mu sync.Mutex

	users     map[uuid.UUID]*domain.User
	trades    map[uuid.UUID]*domain.Trade
	ledger    []*domain.LedgerEntry
	settings  map[uuid.UUID]*domain.ArbitrageSetting
	arbTrades map[uuid.UUID]*domain.ArbitrageTrade
	kyc       map[uuid.UUID]*domain.KYCSubmission
	tickets   map[uuid.UUID]*domain.Ticket
	messages  map[uuid.UUID][]*domain.TicketMessage
	system    map[string]string

	// Fault hooks; a non-nil return fails the call before any write
	AdjustBalanceHook func(userID uuid.UUID, delta decimal.Decimal) error
	SaveTradeHook     func(trade *domain.Trade) error
	AppendLedgerHook  func(entry *domain.LedgerEntry) error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:     make(map[uuid.UUID]*domain.User),
		trades:    make(map[uuid.UUID]*domain.Trade),
		settings:  make(map[uuid.UUID]*domain.ArbitrageSetting),
		arbTrades: make(map[uuid.UUID]*domain.ArbitrageTrade),
		kyc:       make(map[uuid.UUID]*domain.KYCSubmission),
		tickets:   make(map[uuid.UUID]*domain.Ticket),
		messages:  make(map[uuid.UUID][]*domain.TicketMessage),
		system:    make(map[string]string),
	}
}

// Users returns the store as a UserRepository
func (s *Store) Users() domain.UserRepository { return (*userRepo)(s) }

// Trades returns the store as a TradeRepository
func (s *Store) Trades() domain.TradeRepository { return (*tradeRepo)(s) }

// Ledger returns the store as a LedgerRepository
func (s *Store) Ledger() domain.LedgerRepository { return (*ledgerRepo)(s) }

// Arbitrage returns the store as an ArbitrageRepository
func (s *Store) Arbitrage() domain.ArbitrageRepository { return (*arbitrageRepo)(s) }

// KYC returns the store as a KYCRepository
func (s *Store) KYC() domain.KYCRepository { return (*kycRepo)(s) }

// Tickets returns the store as a TicketRepository
func (s *Store) Tickets() domain.TicketRepository { return (*ticketRepo)(s) }

// Settings returns the store as a SettingsRepository
func (s *Store) Settings() domain.SettingsRepository { return (*settingsRepo)(s) }

// Ping always succeeds; it lets the store stand in for a database pool in
// health checks
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func notFound(action string) error {
	return fmt.Errorf("%s: %w", action, domain.ErrNotFound)
}

func limitN[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// ---- users ----

type userRepo Store

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("failed to create user: %w: users_username_key", domain.ErrConflict)
		}
	}
	if user.Balance.IsNegative() {
		return fmt.Errorf("failed to create user: %w: users_balance_check", domain.ErrValidation)
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, notFound("failed to get user by ID")
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound("failed to get user by username")
}

func (r *userRepo) GetAll(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *userRepo) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (domain.BalanceChange, error) {
	if r.AdjustBalanceHook != nil {
		if err := r.AdjustBalanceHook(userID, delta); err != nil {
			return domain.BalanceChange{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.BalanceChange{}, fmt.Errorf("failed to adjust balance: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.BalanceChange{}, notFound("failed to adjust balance")
	}
	after := u.Balance.Add(delta)
	if after.IsNegative() {
		return domain.BalanceChange{}, fmt.Errorf("failed to adjust balance by %s: %w", delta, domain.ErrInsufficientFunds)
	}

	change := domain.BalanceChange{Before: u.Balance, After: after}
	u.Balance = after
	u.UpdatedAt = time.Now()
	return change, nil
}

func (r *userRepo) UpdateStatus(_ context.Context, userID uuid.UUID, status string) error {
	return r.update(userID, func(u *domain.User) { u.Status = status })
}

func (r *userRepo) UpdateKYCStatus(_ context.Context, userID uuid.UUID, status string) error {
	return r.update(userID, func(u *domain.User) { u.KYCStatus = status })
}

func (r *userRepo) update(userID uuid.UUID, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return notFound("failed to update user")
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (r *userRepo) GetStats(_ context.Context) (*domain.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &domain.UserStats{TotalBalance: decimal.Zero}
	for _, u := range r.users {
		stats.TotalUsers++
		if u.IsActive() {
			stats.ActiveUsers++
		}
		stats.TotalBalance = stats.TotalBalance.Add(u.Balance)
	}
	return stats, nil
}

// ---- trades ----

type tradeRepo Store

func (r *tradeRepo) Save(ctx context.Context, trade *domain.Trade) error {
	if r.SaveTradeHook != nil {
		if err := r.SaveTradeHook(trade); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trades[trade.ID]; ok {
		return fmt.Errorf("failed to save trade: %w: trades_pkey", domain.ErrConflict)
	}
	cp := *trade
	r.trades[trade.ID] = &cp
	return nil
}

func (r *tradeRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trades[id]
	if !ok {
		return nil, notFound("failed to get trade")
	}
	cp := *t
	return &cp, nil
}

func (r *tradeRepo) filter(keep func(t *domain.Trade) bool, less func(a, b *domain.Trade) bool) []*domain.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Trade
	for _, t := range r.trades {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func newestFirst(a, b *domain.Trade) bool { return a.CreatedAt.After(b.CreatedAt) }

func (r *tradeRepo) GetByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*domain.Trade, error) {
	return limitN(r.filter(func(t *domain.Trade) bool { return t.UserID == userID }, newestFirst), limit), nil
}

func (r *tradeRepo) GetByResult(_ context.Context, result string, limit int) ([]*domain.Trade, error) {
	return limitN(r.filter(func(t *domain.Trade) bool { return t.Result == result }, newestFirst), limit), nil
}

func (r *tradeRepo) GetExpiredPending(_ context.Context, now time.Time) ([]*domain.Trade, error) {
	return r.filter(
		func(t *domain.Trade) bool { return t.IsPending() && t.IsExpired(now) },
		func(a, b *domain.Trade) bool { return a.ExpiresAt.Before(b.ExpiresAt) },
	), nil
}

func (r *tradeRepo) Settle(ctx context.Context, trade *domain.Trade) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to settle trade: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trades[trade.ID]
	if !ok || !t.IsPending() {
		return fmt.Errorf("failed to settle trade %s: %w", trade.ID, domain.ErrConflict)
	}
	t.Result = trade.Result
	t.ProfitLoss = trade.ProfitLoss
	t.ExitPrice = trade.ExitPrice
	t.SettledBy = trade.SettledBy
	t.SettledAt = trade.SettledAt
	return nil
}

func (r *tradeRepo) CountPending(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.trades {
		if t.IsPending() {
			n++
		}
	}
	return n, nil
}

// ---- ledger ----

type ledgerRepo Store

func (r *ledgerRepo) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	if r.AppendLedgerHook != nil {
		if err := r.AppendLedgerHook(entry); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	r.ledger = append(r.ledger, &cp)
	return nil
}

func (r *ledgerRepo) GetByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.LedgerEntry
	for i := len(r.ledger) - 1; i >= 0; i-- {
		if r.ledger[i].UserID == userID {
			cp := *r.ledger[i]
			out = append(out, &cp)
		}
	}
	return limitN(out, limit), nil
}

func (r *ledgerRepo) GetLatest(ctx context.Context, userID uuid.UUID) (*domain.LedgerEntry, error) {
	entries, _ := r.GetByUserID(ctx, userID, 1)
	if len(entries) == 0 {
		return nil, notFound("failed to get latest ledger entry")
	}
	return entries[0], nil
}

// ---- arbitrage ----

type arbitrageRepo Store

func (r *arbitrageRepo) SaveSetting(_ context.Context, setting *domain.ArbitrageSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.settings {
		if s.Name == setting.Name {
			return fmt.Errorf("failed to save arbitrage setting: %w", domain.ErrConflict)
		}
	}
	cp := *setting
	r.settings[setting.ID] = &cp
	return nil
}

func (r *arbitrageRepo) UpdateSetting(_ context.Context, setting *domain.ArbitrageSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.settings[setting.ID]; !ok {
		return notFound("failed to update arbitrage setting")
	}
	cp := *setting
	r.settings[setting.ID] = &cp
	return nil
}

func (r *arbitrageRepo) GetSetting(_ context.Context, id uuid.UUID) (*domain.ArbitrageSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[id]
	if !ok {
		return nil, notFound("failed to get arbitrage setting")
	}
	cp := *s
	return &cp, nil
}

func (r *arbitrageRepo) ListSettings(_ context.Context, activeOnly bool) ([]*domain.ArbitrageSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.ArbitrageSetting
	for _, s := range r.settings {
		if !activeOnly || s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *arbitrageRepo) SaveTrade(_ context.Context, trade *domain.ArbitrageTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *trade
	r.arbTrades[trade.ID] = &cp
	return nil
}

func (r *arbitrageRepo) GetTrade(_ context.Context, id uuid.UUID) (*domain.ArbitrageTrade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.arbTrades[id]
	if !ok {
		return nil, notFound("failed to get arbitrage trade")
	}
	cp := *t
	return &cp, nil
}

func (r *arbitrageRepo) ListTrades(_ context.Context, limit int) ([]*domain.ArbitrageTrade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.ArbitrageTrade, 0, len(r.arbTrades))
	for _, t := range r.arbTrades {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limitN(out, limit), nil
}

func (r *arbitrageRepo) SettleTrade(_ context.Context, id uuid.UUID, status string, settledAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.arbTrades[id]
	if !ok {
		return notFound("failed to settle arbitrage trade")
	}
	if t.Status != domain.ArbitragePending {
		return fmt.Errorf("failed to settle arbitrage trade: %w", domain.ErrConflict)
	}
	t.Status = status
	t.SettledAt = &settledAt
	return nil
}

// ---- kyc ----

type kycRepo Store

func (r *kycRepo) Save(_ context.Context, sub *domain.KYCSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.kyc {
		if k.UserID == sub.UserID && k.Status == domain.KYCPending {
			return fmt.Errorf("failed to save KYC submission: %w: kyc_one_pending_per_user", domain.ErrConflict)
		}
	}
	cp := *sub
	r.kyc[sub.ID] = &cp
	return nil
}

func (r *kycRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.KYCSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.kyc[id]
	if !ok {
		return nil, notFound("failed to get KYC submission")
	}
	cp := *k
	return &cp, nil
}

func (r *kycRepo) list(keep func(k *domain.KYCSubmission) bool, newest bool) []*domain.KYCSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.KYCSubmission
	for _, k := range r.kyc {
		if keep(k) {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newest {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *kycRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]*domain.KYCSubmission, error) {
	return r.list(func(k *domain.KYCSubmission) bool { return k.UserID == userID }, true), nil
}

func (r *kycRepo) GetByStatus(_ context.Context, status string, limit int) ([]*domain.KYCSubmission, error) {
	return limitN(r.list(func(k *domain.KYCSubmission) bool { return k.Status == status }, false), limit), nil
}

func (r *kycRepo) Review(_ context.Context, sub *domain.KYCSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.kyc[sub.ID]
	if !ok {
		return notFound("failed to review KYC submission")
	}
	if k.Status != domain.KYCPending {
		return fmt.Errorf("failed to review KYC submission: %w", domain.ErrConflict)
	}
	k.Status = sub.Status
	k.ReviewNote = sub.ReviewNote
	k.ReviewedBy = sub.ReviewedBy
	k.ReviewedAt = sub.ReviewedAt
	return nil
}

// ---- tickets ----

type ticketRepo Store

func (r *ticketRepo) Save(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *ticket
	cp.Messages = nil
	r.tickets[ticket.ID] = &cp
	for _, m := range ticket.Messages {
		mc := *m
		r.messages[ticket.ID] = append(r.messages[ticket.ID], &mc)
	}
	return nil
}

func (r *ticketRepo) AddMessage(_ context.Context, m *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[m.TicketID]
	if !ok {
		return notFound("failed to add ticket message")
	}
	mc := *m
	r.messages[m.TicketID] = append(r.messages[m.TicketID], &mc)
	t.UpdatedAt = m.CreatedAt
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return nil, notFound("failed to get ticket")
	}
	cp := *t
	for _, m := range r.messages[id] {
		mc := *m
		cp.Messages = append(cp.Messages, &mc)
	}
	return &cp, nil
}

func (r *ticketRepo) list(keep func(t *domain.Ticket) bool) []*domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Ticket
	for _, t := range r.tickets {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (r *ticketRepo) GetByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Ticket, error) {
	return r.list(func(t *domain.Ticket) bool { return t.UserID == userID }), nil
}

func (r *ticketRepo) GetByStatus(_ context.Context, status string, limit int) ([]*domain.Ticket, error) {
	return limitN(r.list(func(t *domain.Ticket) bool { return status == "" || t.Status == status }), limit), nil
}

func (r *ticketRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return notFound("failed to update ticket status")
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

// ---- system settings ----

type settingsRepo Store

func (r *settingsRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.system[key]
	if !ok {
		return "", notFound("failed to get setting " + key)
	}
	return v, nil
}

func (r *settingsRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.system[key] = value
	return nil
}

func (r *settingsRepo) GetAll(_ context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.system))
	for k, v := range r.system {
		out[k] = v
	}
	return out, nil
}
