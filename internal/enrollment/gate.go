package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/events"
	"github.com/nailsalon/admin-gate/internal/identity"
	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

// AllowlistStore is the allowlist persistence the gate needs.
type AllowlistStore interface {
	GetByAddress(ctx context.Context, address string) (*domain.AllowlistEntry, error)
	Enroll(ctx context.Context, address string, fingerprint *string) (*domain.AllowlistEntry, error)
	TouchFingerprint(ctx context.Context, address string, fingerprint *string) (bool, error)
}

// ManagerLookup returns the active manager record.
type ManagerLookup interface {
	GetActiveManager(ctx context.Context) (*domain.StaffMember, error)
}

// Gate implements the bootstrap procedures: manager-name verification,
// allowlist membership checks, fingerprint refresh and self-enrollment.
// Knowing the manager's name is a low-assurance proof; the allowlist check
// remains the perimeter.
type Gate struct {
	allowlist  AllowlistStore
	managers   ManagerLookup
	limiter    Limiter
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// Dependencies bundles collaborators for the gate.
type Dependencies struct {
	Allowlist  AllowlistStore
	Managers   ManagerLookup
	Limiter    Limiter
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewGate constructs the enrollment gate.
func NewGate(deps Dependencies) *Gate {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		allowlist:  deps.Allowlist,
		managers:   deps.Managers,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// VerifyManagerName reports whether name exactly matches the active
// manager's stored name. The comparison is case-sensitive and untrimmed.
// Guesses from a requester address count against the same budget as
// enrollment; an empty requester is not limited.
func (g *Gate) VerifyManagerName(ctx context.Context, requester, name string) (bool, error) {
	if requester != "" {
		if err := g.checkAttempts(ctx, requester); err != nil {
			return false, err
		}
	}
	return g.matchesManager(ctx, name)
}

func (g *Gate) matchesManager(ctx context.Context, name string) (bool, error) {
	manager, err := g.managers.GetActiveManager(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.NewUpstreamStorage(err)
	}
	return name != "" && name == manager.Name, nil
}

func (g *Gate) checkAttempts(ctx context.Context, requester string) error {
	if g.limiter == nil {
		return nil
	}
	decision := g.limiter.Allow(ctx, requester)
	if !decision.Allowed {
		g.logger.Warn("manager name attempts exceeded",
			zap.Int("count", decision.Count),
			zap.Time("reset_at", decision.ResetAt))
		return apperrors.NewRateLimited("too many enrollment attempts")
	}
	return nil
}

// IsAddressAllowed reports allowlist membership only; it says nothing about
// role. Each check is published for the access log.
func (g *Gate) IsAddressAllowed(ctx context.Context, caller identity.Caller, address string) (bool, error) {
	allowed := true
	if _, err := g.allowlist.GetByAddress(ctx, address); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.NewUpstreamStorage(err)
		}
		allowed = false
	}

	result := domain.AccessDenied
	if allowed {
		result = domain.AccessAllowed
	}
	g.publish(ctx, events.Event{
		Type:    events.EventAccessChecked,
		Address: address,
		Payload: events.AccessCheckedPayload{
			Result:    result,
			Path:      caller.Path,
			UserAgent: caller.UserAgent,
		},
	})
	return allowed, nil
}

// TouchFingerprint refreshes the advisory fingerprint of an existing entry.
// It reports whether the entry existed and never creates one.
func (g *Gate) TouchFingerprint(ctx context.Context, address, fingerprint string) (bool, error) {
	found, err := g.allowlist.TouchFingerprint(ctx, address, optional(fingerprint))
	if err != nil {
		return false, apperrors.NewUpstreamStorage(err)
	}
	return found, nil
}

// Enroll adds address to the allowlist when managerName matches the active
// manager. On mismatch it returns false and changes nothing. New entries
// are left unlinked; a manager links them to a staff record later.
func (g *Gate) Enroll(ctx context.Context, requester, address, managerName, fingerprint string) (bool, error) {
	if err := g.checkAttempts(ctx, requester); err != nil {
		return false, err
	}

	ok, err := g.matchesManager(ctx, managerName)
	if err != nil {
		return false, err
	}
	if !ok {
		g.logger.Info("enrollment rejected: manager name mismatch")
		return false, nil
	}

	entry, err := g.allowlist.Enroll(ctx, address, optional(fingerprint))
	if err != nil {
		return false, apperrors.NewUpstreamStorage(err)
	}

	g.logger.Info("address enrolled", zap.Bool("linked", entry.Linked()))
	g.publish(ctx, events.Event{
		Type:    events.EventAddressEnrolled,
		Address: address,
		Payload: events.AddressEnrolledPayload{
			ManagerName: managerName,
			Linked:      entry.Linked(),
		},
	})
	return true, nil
}

func (g *Gate) publish(ctx context.Context, event events.Event) {
	if g.dispatcher == nil {
		return
	}
	event.Timestamp = g.now().UTC()
	if err := g.dispatcher.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		g.logger.Warn("failed to publish gate event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
