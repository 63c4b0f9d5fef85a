package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

// UserRepositoryImpl implements the UserRepository interface
type UserRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool) domain.UserRepository {
	return &UserRepositoryImpl{db: db}
}

const userColumns = `id, username, email, password_hash, role, status, kyc_status, balance, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.KYCStatus,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// Create creates a new user
func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, role, status, kyc_status, balance, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.KYCStatus,
		user.Balance,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to create user")
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr(err, "failed to get user by ID")
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepositoryImpl) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return nil, wrapErr(err, "failed to get user by username")
	}
	return user, nil
}

// GetAll retrieves all users
func (r *UserRepositoryImpl) GetAll(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// AdjustBalance applies delta in one conditional UPDATE so concurrent
// writers cannot lose each other's changes or overdraw the account.
func (r *UserRepositoryImpl) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (domain.BalanceChange, error) {
	query := `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance - $2, balance
	`

	var change domain.BalanceChange
	err := r.db.QueryRow(ctx, query, userID, delta).Scan(&change.Before, &change.After)
	if err == nil {
		return change, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return change, wrapErr(err, "failed to adjust balance")
	}

	// No row updated: either the user is missing or the balance is too low.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return change, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return change, fmt.Errorf("failed to adjust balance: %w", domain.ErrNotFound)
	}
	return change, fmt.Errorf("failed to adjust balance by %s: %w", delta, domain.ErrInsufficientFunds)
}

// UpdateStatus updates the account status
func (r *UserRepositoryImpl) UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error {
	return r.updateColumn(ctx, userID, "status", status)
}

// UpdateKYCStatus updates the user's KYC status
func (r *UserRepositoryImpl) UpdateKYCStatus(ctx context.Context, userID uuid.UUID, status string) error {
	return r.updateColumn(ctx, userID, "kyc_status", status)
}

// column is always a package constant, never user input
func (r *UserRepositoryImpl) updateColumn(ctx context.Context, userID uuid.UUID, column, value string) error {
	query := fmt.Sprintf(`
		UPDATE users
		SET %s = $1, updated_at = NOW()
		WHERE id = $2
	`, column)

	tag, err := r.db.Exec(ctx, query, value, userID)
	if err != nil {
		return wrapErr(err, "failed to update user "+column)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update user %s: %w", column, domain.ErrNotFound)
	}

	return nil
}

// GetStats returns aggregate user figures
func (r *UserRepositoryImpl) GetStats(ctx context.Context) (*domain.UserStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COALESCE(SUM(balance), 0)
		FROM users
	`

	stats := &domain.UserStats{}
	if err := r.db.QueryRow(ctx, query).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.TotalBalance); err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return stats, nil
}
