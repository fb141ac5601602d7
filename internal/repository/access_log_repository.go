package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nailsalon/admin-gate/internal/domain"
)

// AccessLogRepository writes admin_access_logs rows.
type AccessLogRepository interface {
	Create(ctx context.Context, log *domain.AccessLog) error
}

type accessLogRepository struct {
	db Querier
}

// NewAccessLogRepository returns a Postgres-backed implementation.
func NewAccessLogRepository(db Querier) AccessLogRepository {
	return &accessLogRepository{db: db}
}

func (r *accessLogRepository) Create(ctx context.Context, log *domain.AccessLog) error {
	const query = `
        INSERT INTO admin_access_logs (id, ip, result, path, user_agent, note)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	return r.db.QueryRow(ctx, query,
		log.ID,
		log.IP,
		log.Result,
		log.Path,
		log.UserAgent,
		log.Note,
	).Scan(&log.CreatedAt)
}
