package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
	"tradedesk/internal/service"
	"tradedesk/internal/utils"
)

// TradeLimits bounds trade placement
type TradeLimits struct {
	MinDuration   time.Duration
	MaxDuration   time.Duration
	DefaultPayout decimal.Decimal
	FallbackPrice decimal.Decimal
}

// PlaceTradeInput is a user's trade request
type PlaceTradeInput struct {
	Pair      string
	Direction string
	Amount    decimal.Decimal
	Duration  int // seconds
}

// TradingService handles trade placement and listing
type TradingService struct {
	userRepo     domain.UserRepository
	tradeRepo    domain.TradeRepository
	ledgerRepo   domain.LedgerRepository
	settingsRepo domain.SettingsRepository
	oracle       domain.PriceOracle
	locker       *service.AccountLocker
	limits       TradeLimits
	log          *zap.Logger
	now          func() time.Time
}

// NewTradingService creates a new TradingService
func NewTradingService(
	userRepo domain.UserRepository,
	tradeRepo domain.TradeRepository,
	ledgerRepo domain.LedgerRepository,
	settingsRepo domain.SettingsRepository,
	oracle domain.PriceOracle,
	locker *service.AccountLocker,
	limits TradeLimits,
	log *zap.Logger,
) *TradingService {
	return &TradingService{
		userRepo:     userRepo,
		tradeRepo:    tradeRepo,
		ledgerRepo:   ledgerRepo,
		settingsRepo: settingsRepo,
		oracle:       oracle,
		locker:       locker,
		limits:       limits,
		log:          log.Named("trading"),
		now:          time.Now,
	}
}

func (ts *TradingService) validate(in PlaceTradeInput) (string, error) {
	pair := service.NormalizePair(in.Pair)
	if pair == "" {
		return "", domain.NewValidationError("pair is required")
	}
	if !domain.ValidDirection(in.Direction) {
		return "", domain.NewValidationError("direction must be up or down")
	}
	if !in.Amount.IsPositive() {
		return "", domain.NewValidationError("amount must be greater than zero")
	}
	d := time.Duration(in.Duration) * time.Second
	if d < ts.limits.MinDuration || d > ts.limits.MaxDuration {
		return "", domain.NewValidationError("duration must be between %d and %d seconds",
			int(ts.limits.MinDuration.Seconds()), int(ts.limits.MaxDuration.Seconds()))
	}
	return pair, nil
}

// PlaceTrade debits the stake and opens a pending trade
func (ts *TradingService) PlaceTrade(ctx context.Context, userID uuid.UUID, in PlaceTradeInput) (*domain.Trade, error) {
	pair, err := ts.validate(in)
	if err != nil {
		return nil, err
	}

	user, err := ts.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("user")
		}
		return nil, domain.NewDependencyError("failed to load user", err)
	}
	if !user.IsActive() {
		return nil, domain.NewForbiddenError("account is " + user.Status)
	}

	payout := ts.payoutPercentage(ctx)
	entry := ts.entryPrice(ctx, pair)

	unlock := ts.locker.Lock(userID)
	defer unlock()

	change, err := ts.userRepo.AdjustBalance(ctx, userID, in.Amount.Neg())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			return nil, domain.NewInsufficientFundsError("insufficient balance")
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.NewNotFoundError("user")
		}
		return nil, domain.NewDependencyError("failed to debit balance", err)
	}

	now := ts.now()
	trade := &domain.Trade{
		ID:               uuid.New(),
		UserID:           userID,
		Pair:             pair,
		Direction:        in.Direction,
		Amount:           in.Amount,
		EntryPrice:       entry,
		DurationSeconds:  in.Duration,
		ExpiresAt:        now.Add(time.Duration(in.Duration) * time.Second),
		PayoutPercentage: payout,
		Result:           domain.ResultPending,
		ProfitLoss:       decimal.Zero,
		CreatedAt:        now,
	}
	ref := trade.ID
	debit := domain.NewLedgerEntry(userID, domain.EntryTradeLoss, change, &ref,
		fmt.Sprintf("%s %s stake", pair, in.Direction), now)

	// the debit has committed; what follows must not be cut short by the caller
	commitCtx, cancel := utils.Detach(ctx, utils.CommitTimeout)
	defer cancel()

	if err := ts.tradeRepo.Save(ctx, trade); err != nil {
		ts.compensate(commitCtx, trade, debit, err)
		return nil, domain.NewDependencyError("failed to create trade", err)
	}

	if err := ts.ledgerRepo.Append(commitCtx, debit); err != nil {
		// The trade is live and will settle; the missing row shows up in reconciliation.
		ts.log.Error("Trade placed but stake ledger append failed",
			zap.String("trade_id", trade.ID.String()),
			zap.String("user_id", userID.String()),
			zap.String("amount", in.Amount.String()),
			zap.Error(err),
		)
	}

	ts.log.Info("Trade placed",
		zap.String("trade_id", trade.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("pair", pair),
		zap.String("direction", in.Direction),
		zap.String("amount", in.Amount.String()),
		zap.String("entry", entry.String()),
		zap.Int("duration", in.Duration),
	)

	return trade, nil
}

// compensate refunds a stake whose trade could not be stored. The caller holds the account lock.
func (ts *TradingService) compensate(ctx context.Context, trade *domain.Trade, debit *domain.LedgerEntry, cause error) {
	refund, err := ts.userRepo.AdjustBalance(ctx, trade.UserID, trade.Amount)
	if err != nil {
		ts.log.Error("Trade insert failed and stake refund failed",
			zap.String("trade_id", trade.ID.String()),
			zap.String("user_id", trade.UserID.String()),
			zap.String("amount", trade.Amount.String()),
			zap.NamedError("insert_error", cause),
			zap.Error(err),
		)
		if appendErr := ts.ledgerRepo.Append(ctx, debit); appendErr != nil {
			ts.log.Error("Failed to record unrefunded stake",
				zap.String("trade_id", trade.ID.String()),
				zap.String("user_id", trade.UserID.String()),
				zap.Error(appendErr),
			)
		}
		return
	}

	ts.log.Warn("Trade insert failed, stake refunded",
		zap.String("trade_id", trade.ID.String()),
		zap.String("user_id", trade.UserID.String()),
		zap.Error(cause),
	)

	ref := trade.ID
	entries := []*domain.LedgerEntry{
		debit,
		domain.NewLedgerEntry(trade.UserID, domain.EntryTradeRefund, refund, &ref, "stake refund: trade not created", ts.now()),
	}
	for _, e := range entries {
		if err := ts.ledgerRepo.Append(ctx, e); err != nil {
			ts.log.Error("Failed to record refunded stake",
				zap.String("trade_id", trade.ID.String()),
				zap.String("type", e.Type),
				zap.Error(err),
			)
			return
		}
	}
}

// payoutPercentage reads the live payout setting, falling back to the configured default
func (ts *TradingService) payoutPercentage(ctx context.Context) decimal.Decimal {
	raw, err := ts.settingsRepo.Get(ctx, domain.SettingPayoutPercentage)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			ts.log.Warn("Failed to read payout setting, using default", zap.Error(err))
		}
		return ts.limits.DefaultPayout
	}

	p, err := decimal.NewFromString(raw)
	if err != nil || p.IsNegative() {
		ts.log.Warn("Invalid payout setting, using default", zap.String("value", raw))
		return ts.limits.DefaultPayout
	}
	return p
}

func (ts *TradingService) entryPrice(ctx context.Context, pair string) decimal.Decimal {
	price, err := ts.oracle.GetPrice(ctx, pair)
	if err != nil || !price.IsPositive() {
		ts.log.Warn("Price oracle unavailable, using fallback entry price",
			zap.String("pair", pair),
			zap.String("fallback", ts.limits.FallbackPrice.String()),
			zap.Error(err),
		)
		return ts.limits.FallbackPrice
	}
	return price
}

// SetPayoutPercentage updates the payout applied to newly placed trades
func (ts *TradingService) SetPayoutPercentage(ctx context.Context, percentage decimal.Decimal) error {
	if !percentage.IsPositive() || percentage.GreaterThan(decimal.NewFromInt(1000)) {
		return domain.NewValidationError("percentage must be between 0 and 1000")
	}
	if err := ts.settingsRepo.Set(ctx, domain.SettingPayoutPercentage, percentage.String()); err != nil {
		return domain.NewDependencyError("failed to save payout setting", err)
	}
	ts.log.Info("Payout percentage updated", zap.String("percentage", percentage.String()))
	return nil
}

// ListTrades returns a user's trades, newest first
func (ts *TradingService) ListTrades(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Trade, error) {
	trades, err := ts.tradeRepo.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list trades", err)
	}
	return trades, nil
}

// ListByResult returns trades with result, newest first
func (ts *TradingService) ListByResult(ctx context.Context, result string, limit int) ([]*domain.Trade, error) {
	if result != domain.ResultPending && !domain.ValidTerminalResult(result) {
		return nil, domain.NewValidationError("status must be pending, win or loss")
	}
	trades, err := ts.tradeRepo.GetByResult(ctx, result, limit)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list trades", err)
	}
	return trades, nil
}
