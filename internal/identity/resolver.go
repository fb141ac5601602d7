package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/domain"
)

// AllowlistLookup finds an allowlist entry by exact address.
type AllowlistLookup interface {
	GetByAddress(ctx context.Context, address string) (*domain.AllowlistEntry, error)
}

// StaffLookup finds a staff record by id, including soft-deleted ones.
type StaffLookup interface {
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
}

// Caller is the identity material extracted from one request.
type Caller struct {
	Address     string
	Fingerprint string
	UserAgent   string
	Path        string
}

// Resolver derives a role from an address on every call. Nothing is cached:
// staff can be unlinked or deactivated between requests.
type Resolver struct {
	allowlist AllowlistLookup
	staff     StaffLookup
	logger    *zap.Logger
}

// NewResolver constructs a resolver.
func NewResolver(allowlist AllowlistLookup, staff StaffLookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{allowlist: allowlist, staff: staff, logger: logger}
}

// ResolveRole returns the caller's role. Lookup errors fail closed.
func (r *Resolver) ResolveRole(ctx context.Context, address string) domain.Role {
	if address == "" || address == domain.UnknownAddress {
		return domain.RoleUnauthorized
	}

	entry, err := r.allowlist.GetByAddress(ctx, address)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("allowlist lookup failed", zap.Error(err))
		}
		return domain.RoleUnauthorized
	}
	if !entry.Linked() {
		return domain.RoleUnauthorized
	}

	staff, err := r.staff.GetByID(ctx, *entry.StaffID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("staff lookup failed", zap.Error(err))
		}
		return domain.RoleUnauthorized
	}
	if !staff.Active() {
		return domain.RoleUnauthorized
	}
	return staff.Role.AccessRole()
}
