package repository

import (
	"context"

	"github.com/nailsalon/admin-gate/internal/domain"
)

// AllowlistRepository handles persistence for admin_allowed_ips.
type AllowlistRepository interface {
	GetByAddress(ctx context.Context, address string) (*domain.AllowlistEntry, error)
	// Enroll creates the entry or refreshes its fingerprint. An existing
	// staff link is left untouched; new entries are unlinked.
	Enroll(ctx context.Context, address string, fingerprint *string) (*domain.AllowlistEntry, error)
	// TouchFingerprint reports whether an entry for address existed.
	TouchFingerprint(ctx context.Context, address string, fingerprint *string) (bool, error)
}

type allowlistRepository struct {
	db Querier
}

// NewAllowlistRepository returns a Postgres-backed implementation.
func NewAllowlistRepository(db Querier) AllowlistRepository {
	return &allowlistRepository{db: db}
}

const allowlistColumns = `ip, device_fingerprint, staff_id::text, created_at, updated_at`

func (r *allowlistRepository) GetByAddress(ctx context.Context, address string) (*domain.AllowlistEntry, error) {
	const query = `SELECT ` + allowlistColumns + ` FROM admin_allowed_ips WHERE ip=$1`

	var entry domain.AllowlistEntry
	if err := r.db.QueryRow(ctx, query, address).Scan(
		&entry.Address,
		&entry.DeviceFingerprint,
		&entry.StaffID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *allowlistRepository) Enroll(ctx context.Context, address string, fingerprint *string) (*domain.AllowlistEntry, error) {
	const query = `
        INSERT INTO admin_allowed_ips (ip, device_fingerprint)
        VALUES ($1, $2)
        ON CONFLICT (ip) DO UPDATE
        SET device_fingerprint = COALESCE(EXCLUDED.device_fingerprint, admin_allowed_ips.device_fingerprint),
            updated_at = NOW()
        RETURNING ` + allowlistColumns

	var entry domain.AllowlistEntry
	if err := r.db.QueryRow(ctx, query, address, fingerprint).Scan(
		&entry.Address,
		&entry.DeviceFingerprint,
		&entry.StaffID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *allowlistRepository) TouchFingerprint(ctx context.Context, address string, fingerprint *string) (bool, error) {
	const query = `
        UPDATE admin_allowed_ips
        SET device_fingerprint=$2, updated_at=NOW()
        WHERE ip=$1`

	cmd, err := r.db.Exec(ctx, query, address, fingerprint)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
