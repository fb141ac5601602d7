package repository

import (
	"context"

	"github.com/nailsalon/admin-gate/internal/domain"
)

// StaffRepository reads staff records for identity resolution and enrollment.
// Writes go through the proxy's table store.
type StaffRepository interface {
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	GetActiveManager(ctx context.Context) (*domain.StaffMember, error)
}

type staffRepository struct {
	db Querier
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(db Querier) StaffRepository {
	return &staffRepository{db: db}
}

const staffColumns = `id::text, name, role, created_at, updated_at, deleted_at`

// GetByID returns the record even when soft-deleted; callers check Active.
func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	const query = `SELECT ` + staffColumns + ` FROM staff WHERE id=$1`

	var staff domain.StaffMember
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&staff.ID,
		&staff.Name,
		&staff.Role,
		&staff.CreatedAt,
		&staff.UpdatedAt,
		&staff.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}

// GetActiveManager returns the oldest active manager.
func (r *staffRepository) GetActiveManager(ctx context.Context) (*domain.StaffMember, error) {
	const query = `
        SELECT ` + staffColumns + `
        FROM staff
        WHERE role='manager' AND deleted_at IS NULL
        ORDER BY created_at ASC
        LIMIT 1`

	var staff domain.StaffMember
	if err := r.db.QueryRow(ctx, query).Scan(
		&staff.ID,
		&staff.Name,
		&staff.Role,
		&staff.CreatedAt,
		&staff.UpdatedAt,
		&staff.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}
