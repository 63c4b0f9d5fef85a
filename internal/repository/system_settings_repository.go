package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// SystemSettingsRepository handles system settings database operations
type SystemSettingsRepository struct {
	db *pgxpool.Pool
}

// NewSystemSettingsRepository creates a new repository instance
func NewSystemSettingsRepository(db *pgxpool.Pool) *SystemSettingsRepository {
	return &SystemSettingsRepository{db: db}
}

// Get retrieves a setting value by key
func (r *SystemSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `
		SELECT value FROM system_settings WHERE key = $1
	`, key).Scan(&value)
	if err != nil {
		return "", wrapErr(err, "failed to get setting "+key)
	}

	return value, nil
}

// Set updates or creates a setting
func (r *SystemSettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}

	return nil
}

// GetAll retrieves all system settings keyed by name
func (r *SystemSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT key, value
		FROM system_settings
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}

	return settings, rows.Err()
}

var _ domain.SettingsRepository = (*SystemSettingsRepository)(nil)
