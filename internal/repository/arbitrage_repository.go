package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// ArbitrageRepositoryImpl implements the ArbitrageRepository interface
type ArbitrageRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewArbitrageRepository creates a new ArbitrageRepository
func NewArbitrageRepository(db *pgxpool.Pool) domain.ArbitrageRepository {
	return &ArbitrageRepositoryImpl{db: db}
}

const settingColumns = `
	id, name, min_profit_percent, max_trade_amount, pairs,
	interval_seconds, is_active, created_at, updated_at`

func scanSetting(row pgx.Row) (*domain.ArbitrageSetting, error) {
	s := &domain.ArbitrageSetting{}
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.MinProfitPercent,
		&s.MaxTradeAmount,
		&s.Pairs,
		&s.IntervalSeconds,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

const arbitrageTradeColumns = `
	id, setting_id, pair, buy_exchange, sell_exchange, buy_price, sell_price,
	amount, profit_percent, status, created_at, settled_at`

func scanArbitrageTrade(row pgx.Row) (*domain.ArbitrageTrade, error) {
	t := &domain.ArbitrageTrade{}
	err := row.Scan(
		&t.ID,
		&t.SettingID,
		&t.Pair,
		&t.BuyExchange,
		&t.SellExchange,
		&t.BuyPrice,
		&t.SellPrice,
		&t.Amount,
		&t.ProfitPercent,
		&t.Status,
		&t.CreatedAt,
		&t.SettledAt,
	)
	return t, err
}

// SaveSetting creates a new arbitrage setting
func (r *ArbitrageRepositoryImpl) SaveSetting(ctx context.Context, s *domain.ArbitrageSetting) error {
	query := `
		INSERT INTO arbitrage_settings (
			id, name, min_profit_percent, max_trade_amount, pairs,
			interval_seconds, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.Name, s.MinProfitPercent, s.MaxTradeAmount, s.Pairs,
		s.IntervalSeconds, s.IsActive, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to save arbitrage setting")
	}
	return nil
}

// UpdateSetting overwrites an existing arbitrage setting
func (r *ArbitrageRepositoryImpl) UpdateSetting(ctx context.Context, s *domain.ArbitrageSetting) error {
	query := `
		UPDATE arbitrage_settings
		SET name = $1, min_profit_percent = $2, max_trade_amount = $3, pairs = $4,
		    interval_seconds = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
	`

	tag, err := r.db.Exec(ctx, query,
		s.Name, s.MinProfitPercent, s.MaxTradeAmount, s.Pairs,
		s.IntervalSeconds, s.IsActive, s.ID,
	)
	if err != nil {
		return wrapErr(err, "failed to update arbitrage setting")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update arbitrage setting: %w", domain.ErrNotFound)
	}
	return nil
}

// GetSetting retrieves a setting by ID
func (r *ArbitrageRepositoryImpl) GetSetting(ctx context.Context, id uuid.UUID) (*domain.ArbitrageSetting, error) {
	query := `SELECT ` + settingColumns + ` FROM arbitrage_settings WHERE id = $1`

	s, err := scanSetting(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(err, "failed to get arbitrage setting")
	}
	return s, nil
}

// ListSettings retrieves all settings, or only active ones
func (r *ArbitrageRepositoryImpl) ListSettings(ctx context.Context, activeOnly bool) ([]*domain.ArbitrageSetting, error) {
	query := `SELECT ` + settingColumns + `
		FROM arbitrage_settings
		WHERE ($1 = FALSE OR is_active)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query arbitrage settings: %w", err)
	}
	defer rows.Close()

	var settings []*domain.ArbitrageSetting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan arbitrage setting: %w", err)
		}
		settings = append(settings, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating arbitrage settings: %w", err)
	}
	return settings, nil
}

// SaveTrade records a generated arbitrage opportunity
func (r *ArbitrageRepositoryImpl) SaveTrade(ctx context.Context, t *domain.ArbitrageTrade) error {
	query := `
		INSERT INTO arbitrage_trades (
			id, setting_id, pair, buy_exchange, sell_exchange, buy_price, sell_price,
			amount, profit_percent, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.Exec(ctx, query,
		t.ID, t.SettingID, t.Pair, t.BuyExchange, t.SellExchange, t.BuyPrice, t.SellPrice,
		t.Amount, t.ProfitPercent, t.Status, t.CreatedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to save arbitrage trade")
	}
	return nil
}

// GetTrade retrieves an arbitrage trade by ID
func (r *ArbitrageRepositoryImpl) GetTrade(ctx context.Context, id uuid.UUID) (*domain.ArbitrageTrade, error) {
	query := `SELECT ` + arbitrageTradeColumns + ` FROM arbitrage_trades WHERE id = $1`

	t, err := scanArbitrageTrade(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(err, "failed to get arbitrage trade")
	}
	return t, nil
}

// ListTrades retrieves the most recent arbitrage trades
func (r *ArbitrageRepositoryImpl) ListTrades(ctx context.Context, limit int) ([]*domain.ArbitrageTrade, error) {
	query := `SELECT ` + arbitrageTradeColumns + `
		FROM arbitrage_trades
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query arbitrage trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.ArbitrageTrade
	for rows.Next() {
		t, err := scanArbitrageTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan arbitrage trade: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating arbitrage trades: %w", err)
	}
	return trades, nil
}

// SettleTrade resolves a pending arbitrage trade
func (r *ArbitrageRepositoryImpl) SettleTrade(ctx context.Context, id uuid.UUID, status string, settledAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE arbitrage_trades
		SET status = $1, settled_at = $2
		WHERE id = $3 AND status = 'pending'
	`, status, settledAt, id)
	if err != nil {
		return wrapErr(err, "failed to settle arbitrage trade")
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.GetTrade(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("arbitrage trade %s is not pending: %w", id, domain.ErrConflict)
	}
	return nil
}
