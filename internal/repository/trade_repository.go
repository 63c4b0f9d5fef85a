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

// TradeRepositoryImpl implements the TradeRepository interface
type TradeRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db *pgxpool.Pool) domain.TradeRepository {
	return &TradeRepositoryImpl{db: db}
}

const tradeColumns = `
	id, user_id, pair, direction, amount, entry_price, exit_price,
	duration_seconds, expires_at, payout_percentage, result, profit_loss,
	settled_by, settled_at, created_at`

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	trade := &domain.Trade{}
	err := row.Scan(
		&trade.ID,
		&trade.UserID,
		&trade.Pair,
		&trade.Direction,
		&trade.Amount,
		&trade.EntryPrice,
		&trade.ExitPrice,
		&trade.DurationSeconds,
		&trade.ExpiresAt,
		&trade.PayoutPercentage,
		&trade.Result,
		&trade.ProfitLoss,
		&trade.SettledBy,
		&trade.SettledAt,
		&trade.CreatedAt,
	)
	return trade, err
}

func collectTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// Save creates a new trade
func (r *TradeRepositoryImpl) Save(ctx context.Context, trade *domain.Trade) error {
	query := `
		INSERT INTO trades (
			id, user_id, pair, direction, amount, entry_price,
			duration_seconds, expires_at, payout_percentage, result, profit_loss, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.Exec(ctx, query,
		trade.ID,
		trade.UserID,
		trade.Pair,
		trade.Direction,
		trade.Amount,
		trade.EntryPrice,
		trade.DurationSeconds,
		trade.ExpiresAt,
		trade.PayoutPercentage,
		trade.Result,
		trade.ProfitLoss,
		trade.CreatedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to save trade")
	}

	return nil
}

// GetByID retrieves a trade by ID
func (r *TradeRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	trade, err := scanTrade(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(err, "failed to get trade by ID")
	}
	return trade, nil
}

// GetByUserID retrieves a user's trades, newest first
func (r *TradeRepositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by user ID: %w", err)
	}
	return collectTrades(rows)
}

// GetByResult retrieves trades with the given result, newest first
func (r *TradeRepositoryImpl) GetByResult(ctx context.Context, result string, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE result = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, result, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by result: %w", err)
	}
	return collectTrades(rows)
}

// GetExpiredPending retrieves pending trades that expired at or before now, oldest first
func (r *TradeRepositoryImpl) GetExpiredPending(ctx context.Context, now time.Time) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE result = 'pending' AND expires_at <= $1
		ORDER BY expires_at ASC
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired trades: %w", err)
	}
	return collectTrades(rows)
}

// Settle closes the trade only while it is still pending
func (r *TradeRepositoryImpl) Settle(ctx context.Context, trade *domain.Trade) error {
	query := `
		UPDATE trades
		SET result = $1,
		    profit_loss = $2,
		    exit_price = $3,
		    settled_by = $4,
		    settled_at = $5
		WHERE id = $6 AND result = 'pending'
	`

	tag, err := r.db.Exec(ctx, query,
		trade.Result,
		trade.ProfitLoss,
		trade.ExitPrice,
		trade.SettledBy,
		trade.SettledAt,
		trade.ID,
	)
	if err != nil {
		return wrapErr(err, "failed to settle trade")
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s is not pending: %w", trade.ID, domain.ErrConflict)
	}

	return nil
}

// CountPending counts trades awaiting settlement
func (r *TradeRepositoryImpl) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE result = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending trades: %w", err)
	}
	return n, nil
}
