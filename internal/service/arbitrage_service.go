package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
)

// exchanges quoted by the simulated arbitrage feed
var exchanges = []string{"Binance", "Coinbase", "Kraken", "OKX", "Bybit", "KuCoin"}

// profitBand is the width above a setting's minimum profit an opportunity may land in
var profitBand = decimal.NewFromInt(2)

var hundredPct = decimal.NewFromInt(100)

// ArbitrageService manages the simulated arbitrage feed. Arbitrage trades are
// reporting records only and never move user balances.
type ArbitrageService struct {
	repo   domain.ArbitrageRepository
	oracle domain.PriceOracle
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	rnd     *rand.Rand
	lastRun map[uuid.UUID]time.Time
}

// NewArbitrageService creates a new ArbitrageService
func NewArbitrageService(repo domain.ArbitrageRepository, oracle domain.PriceOracle, log *zap.Logger) *ArbitrageService {
	return &ArbitrageService{
		repo:    repo,
		oracle:  oracle,
		log:     log.Named("arbitrage"),
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		lastRun: make(map[uuid.UUID]time.Time),
	}
}

// CreateSetting validates and stores a new setting
func (s *ArbitrageService) CreateSetting(ctx context.Context, setting *domain.ArbitrageSetting) (*domain.ArbitrageSetting, error) {
	setting.Pairs = normalizePairs(setting.Pairs)
	if err := setting.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	setting.ID = uuid.New()
	setting.CreatedAt = now
	setting.UpdatedAt = now

	if err := s.repo.SaveSetting(ctx, setting); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewConflictError("arbitrage setting already exists")
		}
		return nil, domain.NewDependencyError("failed to save arbitrage setting", err)
	}

	s.log.Info("Arbitrage setting created", zap.String("setting_id", setting.ID.String()), zap.String("name", setting.Name))
	return setting, nil
}

// UpdateSetting replaces the mutable fields of an existing setting
func (s *ArbitrageService) UpdateSetting(ctx context.Context, id uuid.UUID, update *domain.ArbitrageSetting) (*domain.ArbitrageSetting, error) {
	existing, err := s.repo.GetSetting(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("arbitrage setting")
		}
		return nil, domain.NewDependencyError("failed to load arbitrage setting", err)
	}

	existing.Name = update.Name
	existing.MinProfitPercent = update.MinProfitPercent
	existing.MaxTradeAmount = update.MaxTradeAmount
	existing.Pairs = normalizePairs(update.Pairs)
	existing.IntervalSeconds = update.IntervalSeconds
	existing.IsActive = update.IsActive
	if err := existing.Validate(); err != nil {
		return nil, err
	}
	existing.UpdatedAt = s.now()

	if err := s.repo.UpdateSetting(ctx, existing); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("arbitrage setting")
		}
		return nil, domain.NewDependencyError("failed to update arbitrage setting", err)
	}

	return existing, nil
}

// ListSettings returns all settings
func (s *ArbitrageService) ListSettings(ctx context.Context) ([]*domain.ArbitrageSetting, error) {
	settings, err := s.repo.ListSettings(ctx, false)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list arbitrage settings", err)
	}
	return settings, nil
}

// ListTrades returns the most recent arbitrage trades
func (s *ArbitrageService) ListTrades(ctx context.Context, limit int) ([]*domain.ArbitrageTrade, error) {
	trades, err := s.repo.ListTrades(ctx, limit)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list arbitrage trades", err)
	}
	return trades, nil
}

// GenerateOpportunities creates one pending opportunity per pair for every
// active setting whose interval has elapsed. Returns the number created.
func (s *ArbitrageService) GenerateOpportunities(ctx context.Context) (int, error) {
	settings, err := s.repo.ListSettings(ctx, true)
	if err != nil {
		return 0, domain.NewDependencyError("failed to list arbitrage settings", err)
	}

	now := s.now()
	created := 0
	for _, setting := range settings {
		if !s.due(setting, now) {
			continue
		}

		for _, pair := range setting.Pairs {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}

			trade, err := s.opportunity(ctx, setting, pair, now)
			if err != nil {
				s.log.Warn("Failed to price arbitrage opportunity", zap.String("pair", pair), zap.Error(err))
				continue
			}

			if err := s.repo.SaveTrade(ctx, trade); err != nil {
				s.log.Error("Failed to save arbitrage trade",
					zap.String("setting_id", setting.ID.String()),
					zap.String("pair", pair),
					zap.Error(err),
				)
				continue
			}
			created++
		}
	}

	if created > 0 {
		s.log.Debug("Arbitrage opportunities generated", zap.Int("count", created))
	}
	return created, nil
}

// due reports whether setting has not run within its own interval, and marks it as run
func (s *ArbitrageService) due(setting *domain.ArbitrageSetting, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	interval := time.Duration(setting.IntervalSeconds) * time.Second
	if last, ok := s.lastRun[setting.ID]; ok && now.Sub(last) < interval {
		return false
	}
	s.lastRun[setting.ID] = now
	return true
}

func (s *ArbitrageService) opportunity(ctx context.Context, setting *domain.ArbitrageSetting, pair string, now time.Time) (*domain.ArbitrageTrade, error) {
	price, err := s.oracle.GetPrice(ctx, pair)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	buyIdx := s.rnd.Intn(len(exchanges))
	sellIdx := (buyIdx + 1 + s.rnd.Intn(len(exchanges)-1)) % len(exchanges)
	spread := decimal.NewFromFloat(s.rnd.Float64()).Mul(profitBand)
	amountFrac := decimal.NewFromFloat(0.1 + 0.9*s.rnd.Float64())
	s.mu.Unlock()

	profit := setting.MinProfitPercent.Add(spread).Round(4)
	sell := price.Mul(decimal.NewFromInt(1).Add(profit.Div(hundredPct))).Round(8)

	return &domain.ArbitrageTrade{
		ID:            uuid.New(),
		SettingID:     setting.ID,
		Pair:          pair,
		BuyExchange:   exchanges[buyIdx],
		SellExchange:  exchanges[sellIdx],
		BuyPrice:      price,
		SellPrice:     sell,
		Amount:        setting.MaxTradeAmount.Mul(amountFrac).Round(2),
		ProfitPercent: profit,
		Status:        domain.ArbitragePending,
		CreatedAt:     now,
	}, nil
}

// SettleTrade resolves a pending arbitrage trade as profit or loss, once
func (s *ArbitrageService) SettleTrade(ctx context.Context, id uuid.UUID, status string) (*domain.ArbitrageTrade, error) {
	if status != domain.ArbitrageProfit && status != domain.ArbitrageLoss {
		return nil, domain.NewValidationError("result must be profit or loss")
	}

	settledAt := s.now()
	if err := s.repo.SettleTrade(ctx, id, status, settledAt); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.NewNotFoundError("arbitrage trade")
		case errors.Is(err, domain.ErrConflict):
			trade, getErr := s.repo.GetTrade(ctx, id)
			if getErr != nil {
				return nil, domain.NewConflictError("arbitrage trade already settled")
			}
			return trade, domain.NewConflictError("arbitrage trade already settled")
		}
		return nil, domain.NewDependencyError("failed to settle arbitrage trade", err)
	}

	trade, err := s.repo.GetTrade(ctx, id)
	if err != nil {
		return nil, domain.NewDependencyError("failed to load arbitrage trade", err)
	}

	s.log.Info("Arbitrage trade settled", zap.String("trade_id", id.String()), zap.String("status", status))
	return trade, nil
}

func normalizePairs(pairs []string) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if n := NormalizePair(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
