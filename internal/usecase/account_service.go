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
)

// Statistics is the admin console summary
type Statistics struct {
	TotalUsers    int             `json:"total_users"`
	ActiveUsers   int             `json:"active_users"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
	PendingTrades int             `json:"pending_trades"`
}

// AccountService manages user accounts
type AccountService struct {
	userRepo        domain.UserRepository
	tradeRepo       domain.TradeRepository
	wallet          *WalletService
	startingBalance decimal.Decimal
	log             *zap.Logger
	now             func() time.Time
}

// NewAccountService creates a new AccountService
func NewAccountService(
	userRepo domain.UserRepository,
	tradeRepo domain.TradeRepository,
	wallet *WalletService,
	startingBalance decimal.Decimal,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
		userRepo:        userRepo,
		tradeRepo:       tradeRepo,
		wallet:          wallet,
		startingBalance: startingBalance,
		log:             log.Named("accounts"),
		now:             time.Now,
	}
}

// Register creates an active user account. The starting balance, if any, is
// booked as a deposit so the ledger reconciles from the first entry.
func (as *AccountService) Register(ctx context.Context, username, email, passwordHash string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return nil, domain.NewValidationError("username must be 3 to 32 characters")
	}
	if passwordHash == "" {
		return nil, domain.NewValidationError("password is required")
	}

	now := as.now()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
		KYCStatus:    domain.KYCNone,
		Balance:      decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := as.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewValidationError("username is already taken")
		}
		return nil, domain.NewDependencyError("failed to create user", err)
	}

	if as.startingBalance.IsPositive() {
		if err := as.wallet.Credit(ctx, user.ID, as.startingBalance, "starting balance"); err != nil {
			as.log.Error("User created without starting balance", zap.String("user_id", user.ID.String()), zap.Error(err))
		} else {
			user.Balance = as.startingBalance
		}
	}

	as.log.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("username", username))
	return user, nil
}

// Authenticate loads a user for login. Banned users cannot sign in.
func (as *AccountService) Authenticate(ctx context.Context, username string, verify func(hash string) bool) (*domain.User, error) {
	user, err := as.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewUnauthorizedError("invalid credentials")
		}
		return nil, domain.NewDependencyError("failed to load user", err)
	}
	if !verify(user.PasswordHash) {
		return nil, domain.NewUnauthorizedError("invalid credentials")
	}
	if user.Status == domain.UserStatusBanned {
		return nil, domain.NewForbiddenError("account is banned")
	}
	return user, nil
}

// GetUser returns one user
func (as *AccountService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := as.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("user")
		}
		return nil, domain.NewDependencyError("failed to load user", err)
	}
	return user, nil
}

// ListUsers returns every user
func (as *AccountService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := as.userRepo.GetAll(ctx)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list users", err)
	}
	return users, nil
}

// SetStatus changes a user's account status. Staff cannot change their own
// status and only a master may change another staff member's.
func (as *AccountService) SetStatus(ctx context.Context, actor *domain.User, userID uuid.UUID, status string) error {
	if !domain.ValidUserStatus(status) {
		return domain.NewValidationError("status must be active, suspended or banned")
	}
	if actor.ID == userID {
		return domain.NewForbiddenError("cannot change your own status")
	}

	target, err := as.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if target.IsStaff() && actor.Role != domain.RoleMaster {
		return domain.NewForbiddenError("only a master can change staff accounts")
	}

	if err := as.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("user")
		}
		return domain.NewDependencyError("failed to update status", err)
	}

	as.log.Info("User status changed",
		zap.String("user_id", userID.String()),
		zap.String("status", status),
		zap.String("by", actor.ID.String()),
	)
	return nil
}

// Statistics returns the admin console summary
func (as *AccountService) Statistics(ctx context.Context) (*Statistics, error) {
	stats, err := as.userRepo.GetStats(ctx)
	if err != nil {
		return nil, domain.NewDependencyError("failed to load user stats", err)
	}
	pending, err := as.tradeRepo.CountPending(ctx)
	if err != nil {
		return nil, domain.NewDependencyError("failed to count pending trades", err)
	}

	return &Statistics{
		TotalUsers:    stats.TotalUsers,
		ActiveUsers:   stats.ActiveUsers,
		TotalBalance:  stats.TotalBalance,
		PendingTrades: pending,
	}, nil
}
