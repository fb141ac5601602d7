package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// SettingsRepository reads the singleton app_settings row.
type SettingsRepository interface {
	AccessLogEnabled(ctx context.Context) (bool, error)
}

type settingsRepository struct {
	db Querier
}

// NewSettingsRepository returns a Postgres-backed implementation.
func NewSettingsRepository(db Querier) SettingsRepository {
	return &settingsRepository{db: db}
}

// AccessLogEnabled defaults to true when the settings row is missing.
func (r *settingsRepository) AccessLogEnabled(ctx context.Context) (bool, error) {
	const query = `SELECT admin_access_log_enabled FROM app_settings WHERE id = true`

	var enabled bool
	if err := r.db.QueryRow(ctx, query).Scan(&enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	return enabled, nil
}
