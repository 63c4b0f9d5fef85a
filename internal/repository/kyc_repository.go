package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// KYCRepositoryImpl implements the KYCRepository interface
type KYCRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewKYCRepository creates a new KYCRepository
func NewKYCRepository(db *pgxpool.Pool) domain.KYCRepository {
	return &KYCRepositoryImpl{db: db}
}

const kycColumns = `
	id, user_id, full_name, document_type, document_number, document_url,
	status, review_note, reviewed_by, created_at, reviewed_at`

func scanKYC(row pgx.Row) (*domain.KYCSubmission, error) {
	k := &domain.KYCSubmission{}
	err := row.Scan(
		&k.ID,
		&k.UserID,
		&k.FullName,
		&k.DocumentType,
		&k.DocumentNumber,
		&k.DocumentURL,
		&k.Status,
		&k.ReviewNote,
		&k.ReviewedBy,
		&k.CreatedAt,
		&k.ReviewedAt,
	)
	return k, err
}

func (r *KYCRepositoryImpl) queryKYC(ctx context.Context, query string, args ...interface{}) ([]*domain.KYCSubmission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kyc submissions: %w", err)
	}
	defer rows.Close()

	var out []*domain.KYCSubmission
	for rows.Next() {
		k, err := scanKYC(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kyc submission: %w", err)
		}
		out = append(out, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kyc submissions: %w", err)
	}
	return out, nil
}

// Save creates a new submission. A second pending submission for the same
// user violates idx_kyc_one_pending and returns ErrConflict.
func (r *KYCRepositoryImpl) Save(ctx context.Context, k *domain.KYCSubmission) error {
	query := `
		INSERT INTO kyc_submissions (
			id, user_id, full_name, document_type, document_number, document_url, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.Exec(ctx, query,
		k.ID, k.UserID, k.FullName, k.DocumentType, k.DocumentNumber, k.DocumentURL, k.Status, k.CreatedAt,
	)
	if err != nil {
		return wrapErr(err, "failed to save kyc submission")
	}
	return nil
}

// GetByID retrieves a submission by ID
func (r *KYCRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.KYCSubmission, error) {
	k, err := scanKYC(r.db.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_submissions WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "failed to get kyc submission")
	}
	return k, nil
}

// GetByUserID retrieves a user's submissions, newest first
func (r *KYCRepositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.KYCSubmission, error) {
	return r.queryKYC(ctx, `SELECT `+kycColumns+`
		FROM kyc_submissions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

// GetByStatus retrieves submissions in a status, oldest first
func (r *KYCRepositoryImpl) GetByStatus(ctx context.Context, status string, limit int) ([]*domain.KYCSubmission, error) {
	return r.queryKYC(ctx, `SELECT `+kycColumns+`
		FROM kyc_submissions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, status, limit)
}

// Review records a decision on a pending submission
func (r *KYCRepositoryImpl) Review(ctx context.Context, k *domain.KYCSubmission) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE kyc_submissions
		SET status = $1, review_note = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $5 AND status = 'pending'
	`, k.Status, k.ReviewNote, k.ReviewedBy, k.ReviewedAt, k.ID)
	if err != nil {
		return wrapErr(err, "failed to review kyc submission")
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("kyc submission %s is not pending: %w", k.ID, domain.ErrConflict)
	}
	return nil
}
