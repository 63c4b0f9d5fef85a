package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
	"tradedesk/internal/utils"
)

// SettlementSource says where a trade's outcome comes from
type SettlementSource int

const (
	// SourcePriced compares the oracle's exit price with the entry price
	SourcePriced SettlementSource = iota
	// SourceAdmin takes the result declared by an operator
	SourceAdmin
)

// SettleRequest parameterises a settlement. Formula overrides the default
// payout formula of the source when set.
type SettleRequest struct {
	Source  SettlementSource
	Result  string
	Formula *domain.PayoutFormula
}

func (r SettleRequest) formula() domain.PayoutFormula {
	if r.Formula != nil {
		return *r.Formula
	}
	if r.Source == SourceAdmin {
		return domain.PayoutProfitOnly
	}
	return domain.PayoutPrincipalPlusProfit
}

// SettlementService resolves pending trades exactly once
type SettlementService struct {
	tradeRepo  domain.TradeRepository
	userRepo   domain.UserRepository
	ledgerRepo domain.LedgerRepository
	oracle     domain.PriceOracle
	locker     *AccountLocker
	log        *zap.Logger
	now        func() time.Time
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	tradeRepo domain.TradeRepository,
	userRepo domain.UserRepository,
	ledgerRepo domain.LedgerRepository,
	oracle domain.PriceOracle,
	locker *AccountLocker,
	log *zap.Logger,
) *SettlementService {
	return &SettlementService{
		tradeRepo:  tradeRepo,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		oracle:     oracle,
		locker:     locker,
		log:        log.Named("settlement"),
		now:        time.Now,
	}
}

// Settle resolves one trade. A trade that is no longer pending yields
// ErrConflict and no side effects.
func (s *SettlementService) Settle(ctx context.Context, tradeID uuid.UUID, req SettleRequest) (*domain.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("trade")
		}
		return nil, domain.NewDependencyError("failed to load trade", err)
	}

	if !trade.IsPending() {
		return trade, domain.NewConflictError("trade already settled")
	}

	result, exitPrice, err := s.resolve(ctx, trade, req)
	if err != nil {
		return nil, err
	}

	formula := req.formula()
	payout := trade.Payout(result, formula)
	settledAt := s.now()
	settledBy := domain.SettledByAuto
	if req.Source == SourceAdmin {
		settledBy = domain.SettledByAdmin
	}

	trade.Result = result
	trade.ProfitLoss = payout
	trade.ExitPrice = &exitPrice
	trade.SettledBy = &settledBy
	trade.SettledAt = &settledAt

	// The conditional update is the exactly-once point: of two concurrent
	// settlers only one sees a pending row.
	if err := s.tradeRepo.Settle(ctx, trade); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return trade, domain.NewConflictError("trade already settled")
		}
		return nil, domain.NewDependencyError("failed to settle trade", err)
	}

	s.log.Info("Trade settled",
		zap.String("trade_id", trade.ID.String()),
		zap.String("user_id", trade.UserID.String()),
		zap.String("pair", trade.Pair),
		zap.String("direction", trade.Direction),
		zap.String("entry", trade.EntryPrice.String()),
		zap.String("exit", exitPrice.String()),
		zap.String("result", result),
		zap.String("payout", payout.String()),
		zap.String("formula", formula.String()),
		zap.String("settled_by", settledBy),
	)

	if result == domain.ResultWin && payout.IsPositive() {
		// the row is terminal now, so the credit cannot be retried later
		commitCtx, cancel := utils.Detach(ctx, utils.CommitTimeout)
		defer cancel()

		if err := s.credit(commitCtx, trade, payout, settledAt); err != nil {
			return trade, err
		}
	}

	return trade, nil
}

func (s *SettlementService) resolve(ctx context.Context, trade *domain.Trade, req SettleRequest) (string, decimal.Decimal, error) {
	switch req.Source {
	case SourcePriced:
		exit, err := s.oracle.GetPrice(ctx, trade.Pair)
		if err != nil {
			return "", decimal.Zero, domain.NewDependencyError("failed to price trade", err)
		}
		return trade.Outcome(exit), exit, nil

	case SourceAdmin:
		if !domain.ValidTerminalResult(req.Result) {
			return "", decimal.Zero, domain.NewValidationError("result must be win or loss")
		}
		exit, err := s.oracle.GetPrice(ctx, trade.Pair)
		if err != nil {
			exit = trade.EntryPrice
		}
		return req.Result, exit, nil
	}

	return "", decimal.Zero, domain.NewValidationError("unknown settlement source")
}

func (s *SettlementService) credit(ctx context.Context, trade *domain.Trade, payout decimal.Decimal, at time.Time) error {
	unlock := s.locker.Lock(trade.UserID)
	defer unlock()

	change, err := s.userRepo.AdjustBalance(ctx, trade.UserID, payout)
	if err != nil {
		s.log.Error("Trade settled as win but balance credit failed",
			zap.String("trade_id", trade.ID.String()),
			zap.String("user_id", trade.UserID.String()),
			zap.String("payout", payout.String()),
			zap.Error(err),
		)
		return domain.NewDependencyError("failed to credit winnings", err)
	}

	ref := trade.ID
	entry := domain.NewLedgerEntry(trade.UserID, domain.EntryTradeWin, change, &ref,
		fmt.Sprintf("%s %s win", trade.Pair, trade.Direction), at)
	if err := s.ledgerRepo.Append(ctx, entry); err != nil {
		s.log.Error("Winnings credited but ledger append failed",
			zap.String("trade_id", trade.ID.String()),
			zap.String("user_id", trade.UserID.String()),
			zap.String("balance_before", change.Before.String()),
			zap.String("balance_after", change.After.String()),
			zap.Error(err),
		)
		return domain.NewDependencyError("failed to record winnings", err)
	}

	return nil
}

// SettleExpired settles every pending trade whose expiry is at or before now.
// Failures are logged per trade and do not stop the batch. It returns the
// number of trades this call settled.
func (s *SettlementService) SettleExpired(ctx context.Context, now time.Time) (int, error) {
	trades, err := s.tradeRepo.GetExpiredPending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired trades: %w", err)
	}

	if len(trades) == 0 {
		return 0, nil
	}

	s.log.Debug("Settling expired trades", zap.Int("count", len(trades)))

	settled := 0
	for i, trade := range trades {
		if ctx.Err() != nil {
			s.log.Info("Settlement batch interrupted", zap.Int("settled", settled), zap.Int("skipped", len(trades)-i))
			return settled, ctx.Err()
		}

		_, err := s.Settle(ctx, trade.ID, SettleRequest{Source: SourcePriced})
		switch {
		case err == nil:
			settled++
		case errors.Is(err, domain.ErrConflict):
			s.log.Debug("Trade already settled elsewhere", zap.String("trade_id", trade.ID.String()))
		default:
			s.log.Error("Failed to settle trade", zap.String("trade_id", trade.ID.String()), zap.Error(err))
		}
	}

	return settled, nil
}
