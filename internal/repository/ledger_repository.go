package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// LedgerRepositoryImpl implements the append-only LedgerRepository
type LedgerRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *pgxpool.Pool) domain.LedgerRepository {
	return &LedgerRepositoryImpl{db: db}
}

const ledgerColumns = `
	id, user_id, type, amount, balance_before, balance_after,
	reference_id, counterparty_id, description, created_at`

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{}
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Type,
		&entry.Amount,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.ReferenceID,
		&entry.CounterpartyID,
		&entry.Description,
		&entry.CreatedAt,
	)
	return entry, err
}

// Append writes a new entry
func (r *LedgerRepositoryImpl) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO transactions (
			id, user_id, type, amount, balance_before, balance_after,
			reference_id, counterparty_id, description, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Type,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.ReferenceID,
		entry.CounterpartyID,
		entry.Description,
		entry.CreatedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to append ledger entry")
	}

	return nil
}

// GetByUserID retrieves a user's entries, newest first
func (r *LedgerRepositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// GetLatest retrieves the most recent entry for a user
func (r *LedgerRepositoryImpl) GetLatest(ctx context.Context, userID uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	entry, err := scanEntry(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, wrapErr(err, "failed to get latest ledger entry")
	}
	return entry, nil
}
