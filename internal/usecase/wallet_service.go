package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
	"tradedesk/internal/service"
	"tradedesk/internal/utils"
)

// Wallet is a balance with its recent ledger history
type Wallet struct {
	Balance decimal.Decimal       `json:"balance"`
	Entries []*domain.LedgerEntry `json:"entries"`
}

// WalletService moves funds between accounts and reports on them
type WalletService struct {
	userRepo   domain.UserRepository
	ledgerRepo domain.LedgerRepository
	locker     *service.AccountLocker
	log        *zap.Logger
	now        func() time.Time
}

// NewWalletService creates a new WalletService
func NewWalletService(
	userRepo domain.UserRepository,
	ledgerRepo domain.LedgerRepository,
	locker *service.AccountLocker,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		locker:     locker,
		log:        log.Named("wallet"),
		now:        time.Now,
	}
}

// Transfer moves amount from one user to another by username and returns the
// sender's new balance. If the recipient cannot be credited the sender's debit
// is reversed before the error is returned.
func (ws *WalletService) Transfer(ctx context.Context, fromID uuid.UUID, toUsername string, amount decimal.Decimal) (decimal.Decimal, error) {
	toUsername = strings.TrimSpace(toUsername)
	if !amount.IsPositive() {
		return decimal.Zero, domain.NewValidationError("amount must be greater than zero")
	}
	if toUsername == "" {
		return decimal.Zero, domain.NewValidationError("recipient username is required")
	}

	sender, err := ws.userRepo.GetByID(ctx, fromID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, domain.NewNotFoundError("user")
		}
		return decimal.Zero, domain.NewDependencyError("failed to load sender", err)
	}
	if !sender.IsActive() {
		return decimal.Zero, domain.NewForbiddenError("account is " + sender.Status)
	}

	recipient, err := ws.userRepo.GetByUsername(ctx, toUsername)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, domain.NewNotFoundError("recipient")
		}
		return decimal.Zero, domain.NewDependencyError("failed to load recipient", err)
	}
	if recipient.ID == sender.ID {
		return decimal.Zero, domain.NewValidationError("cannot transfer to yourself")
	}

	unlock := ws.locker.Lock(sender.ID, recipient.ID)
	defer unlock()

	debit, err := ws.userRepo.AdjustBalance(ctx, sender.ID, amount.Neg())
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return decimal.Zero, domain.NewInsufficientFundsError("insufficient balance")
		}
		return decimal.Zero, domain.NewDependencyError("failed to debit sender", err)
	}

	now := ws.now()
	ref := uuid.New()
	out := domain.NewLedgerEntry(sender.ID, domain.EntryTransferOut, debit, &ref, "transfer to "+recipient.Username, now)
	out.CounterpartyID = &recipient.ID

	// the sender debit has committed; the credit and its bookkeeping run to completion
	commitCtx, cancel := utils.Detach(ctx, utils.CommitTimeout)
	defer cancel()

	credit, err := ws.userRepo.AdjustBalance(ctx, recipient.ID, amount)
	if err != nil {
		ws.reverseDebit(commitCtx, out, amount, err)
		return decimal.Zero, domain.NewDependencyError("failed to credit recipient", err)
	}

	in := domain.NewLedgerEntry(recipient.ID, domain.EntryTransferIn, credit, &ref, "transfer from "+sender.Username, now)
	in.CounterpartyID = &sender.ID

	for _, e := range []*domain.LedgerEntry{out, in} {
		if err := ws.ledgerRepo.Append(commitCtx, e); err != nil {
			ws.log.Error("Transfer applied but ledger append failed",
				zap.String("reference_id", ref.String()),
				zap.String("user_id", e.UserID.String()),
				zap.String("type", e.Type),
				zap.String("amount", e.Amount.String()),
				zap.Error(err),
			)
		}
	}

	ws.log.Info("Transfer completed",
		zap.String("reference_id", ref.String()),
		zap.String("from", sender.ID.String()),
		zap.String("to", recipient.ID.String()),
		zap.String("amount", amount.String()),
	)

	return debit.After, nil
}

// reverseDebit restores a sender whose recipient could not be credited. The
// caller holds both account locks.
func (ws *WalletService) reverseDebit(ctx context.Context, out *domain.LedgerEntry, amount decimal.Decimal, cause error) {
	if _, err := ws.userRepo.AdjustBalance(ctx, out.UserID, amount); err != nil {
		ws.log.Error("Transfer compensation failed: sender debited without recipient credit",
			zap.String("reference_id", out.ReferenceID.String()),
			zap.String("sender_id", out.UserID.String()),
			zap.String("recipient_id", out.CounterpartyID.String()),
			zap.String("amount", amount.String()),
			zap.String("balance_before", out.BalanceBefore.String()),
			zap.String("balance_after", out.BalanceAfter.String()),
			zap.NamedError("credit_error", cause),
			zap.Error(err),
		)
		// keep the ledger in step with the stored balance so the loss is auditable
		out.Description = "transfer failed: recipient not credited"
		if appendErr := ws.ledgerRepo.Append(ctx, out); appendErr != nil {
			ws.log.Error("Failed to record uncompensated transfer debit",
				zap.String("reference_id", out.ReferenceID.String()),
				zap.Error(appendErr),
			)
		}
		return
	}

	ws.log.Warn("Recipient credit failed, sender debit reversed",
		zap.String("reference_id", out.ReferenceID.String()),
		zap.String("sender_id", out.UserID.String()),
		zap.String("recipient_id", out.CounterpartyID.String()),
		zap.Error(cause),
	)
}

// AdminAdjust applies a signed manual balance adjustment on behalf of adminID
func (ws *WalletService) AdminAdjust(ctx context.Context, adminID, userID uuid.UUID, amount decimal.Decimal, description string) (*domain.LedgerEntry, error) {
	if amount.IsZero() {
		return nil, domain.NewValidationError("amount must not be zero")
	}
	if strings.TrimSpace(description) == "" {
		description = "manual adjustment"
	}

	unlock := ws.locker.Lock(userID)
	defer unlock()

	change, err := ws.userRepo.AdjustBalance(ctx, userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.NewNotFoundError("user")
		case errors.Is(err, domain.ErrInsufficientFunds):
			return nil, domain.NewInsufficientFundsError("adjustment would make the balance negative")
		}
		return nil, domain.NewDependencyError("failed to adjust balance", err)
	}

	commitCtx, cancel := utils.Detach(ctx, utils.CommitTimeout)
	defer cancel()

	entry := domain.NewLedgerEntry(userID, domain.EntryAdminAdjustment, change, nil, description, ws.now())
	entry.CounterpartyID = &adminID
	if err := ws.ledgerRepo.Append(commitCtx, entry); err != nil {
		ws.log.Error("Balance adjusted but ledger append failed",
			zap.String("user_id", userID.String()),
			zap.String("admin_id", adminID.String()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, domain.NewDependencyError("failed to record adjustment", err)
	}

	ws.log.Info("Balance adjusted by admin",
		zap.String("user_id", userID.String()),
		zap.String("admin_id", adminID.String()),
		zap.String("amount", amount.String()),
		zap.String("balance", change.After.String()),
	)
	return entry, nil
}

// Credit adds a positive amount as a ledger-recorded deposit
func (ws *WalletService) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return domain.NewValidationError("amount must be greater than zero")
	}

	unlock := ws.locker.Lock(userID)
	defer unlock()

	change, err := ws.userRepo.AdjustBalance(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("user")
		}
		return domain.NewDependencyError("failed to credit balance", err)
	}

	commitCtx, cancel := utils.Detach(ctx, utils.CommitTimeout)
	defer cancel()

	entry := domain.NewLedgerEntry(userID, domain.EntryDeposit, change, nil, description, ws.now())
	if err := ws.ledgerRepo.Append(commitCtx, entry); err != nil {
		ws.log.Error("Deposit applied but ledger append failed",
			zap.String("user_id", userID.String()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return domain.NewDependencyError("failed to record deposit", err)
	}
	return nil
}

// GetWallet returns the balance and the latest limit ledger entries
func (ws *WalletService) GetWallet(ctx context.Context, userID uuid.UUID, limit int) (*Wallet, error) {
	user, err := ws.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("user")
		}
		return nil, domain.NewDependencyError("failed to load user", err)
	}

	entries, err := ws.ledgerRepo.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, domain.NewDependencyError("failed to load ledger", err)
	}
	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}

	return &Wallet{Balance: user.Balance, Entries: entries}, nil
}

// Reconcile checks that the latest ledger entry's balance_after equals the
// stored balance. A user without entries is consistent only at zero.
func (ws *WalletService) Reconcile(ctx context.Context, userID uuid.UUID) (*domain.Reconciliation, error) {
	unlock := ws.locker.Lock(userID)
	defer unlock()

	user, err := ws.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("user")
		}
		return nil, domain.NewDependencyError("failed to load user", err)
	}

	rec := &domain.Reconciliation{UserID: userID, Balance: user.Balance}

	latest, err := ws.ledgerRepo.GetLatest(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec.Consistent = user.Balance.IsZero()
	case err != nil:
		return nil, domain.NewDependencyError("failed to load ledger", err)
	default:
		rec.LedgerBalance = &latest.BalanceAfter
		rec.Consistent = latest.BalanceAfter.Equal(user.Balance)
	}

	if !rec.Consistent {
		ledger := "none"
		if rec.LedgerBalance != nil {
			ledger = rec.LedgerBalance.String()
		}
		ws.log.Error("Ledger inconsistency detected",
			zap.String("user_id", userID.String()),
			zap.String("balance", user.Balance.String()),
			zap.String("ledger_balance", ledger),
		)
	}

	return rec, nil
}
