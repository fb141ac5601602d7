package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/events"
	"github.com/nailsalon/admin-gate/internal/policy"
	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

func (p *Proxy) delete(ctx context.Context, role domain.Role, req Request) (any, error) {
	if req.Table == domain.TableStaff {
		return p.deleteStaff(ctx, role, req)
	}

	filters, err := p.requiredFilters(req)
	if err != nil {
		return nil, err
	}

	strategy, _ := p.registry.DeleteStrategyFor(req.Table)
	if strategy == policy.DeleteSoft {
		rows, err := p.store.Update(ctx, req.Table, p.deletedMarker(), filters)
		if err != nil {
			return nil, apperrors.NewUpstreamStorage(err)
		}
		return rows, nil
	}

	rows, err := p.store.Delete(ctx, req.Table, filters)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []Row{}, nil
		}
		return nil, apperrors.NewUpstreamStorage(err)
	}
	return rows, nil
}

func (p *Proxy) deletedMarker() policy.Values {
	return policy.Values{domain.SoftDeleteColumn: p.now().UTC()}
}

// deleteStaff removes a non-manager staff member: schedule rows first, the
// staff record last.
func (p *Proxy) deleteStaff(ctx context.Context, role domain.Role, req Request) (any, error) {
	if !role.IsManager() {
		return nil, apperrors.NewAuthorizationDenied("Only manager can delete staff")
	}
	filters, err := p.registry.Filters(domain.TableStaff, req.Query.Where)
	if err != nil {
		return nil, err
	}
	var staffID string
	for _, f := range filters {
		if f.Column == "id" && f.Kind == policy.FilterEq {
			staffID, _ = f.Value.(string)
		}
	}
	if staffID == "" {
		return nil, apperrors.NewValidationError("id is required for delete staff operation", nil)
	}

	rows, err := p.store.Select(ctx, policy.Query{
		Table:   domain.TableStaff,
		Columns: []string{"id", "name", "role", domain.SoftDeleteColumn},
		Filters: []policy.Filter{policy.Eq("id", staffID)},
		Limit:   1,
	})
	if err != nil {
		return nil, apperrors.NewUpstreamStorage(err)
	}
	if len(rows) == 0 {
		return []Row{}, nil
	}
	if fmt.Sprint(rows[0]["role"]) == string(domain.StaffRoleManager) {
		return nil, apperrors.NewInvalidState("manager staff cannot be deleted")
	}

	saga := p.staffCascade(staffID)
	deleted, err := saga.run(ctx)
	if err != nil {
		p.logger.Error("staff cascade aborted",
			zap.String("step", saga.failedStep),
			zap.Error(err))
		return nil, apperrors.NewUpstreamStorage(err)
	}

	name, _ := rows[0]["name"].(string)
	p.publish(ctx, events.Event{
		Type:    events.EventStaffDeleted,
		Role:    role,
		Payload: events.StaffDeletedPayload{StaffID: staffID, StaffName: name},
	})
	return deleted, nil
}

// cascadeStep is one sub-operation of the staff removal. Steps run in
// order and the first failure stops the run with nothing compensated. The
// staff record is always the last step.
type cascadeStep struct {
	name string
	run  func(ctx context.Context) ([]Row, error)
}

type cascade struct {
	steps      []cascadeStep
	failedStep string
}

func (c *cascade) run(ctx context.Context) ([]Row, error) {
	var last []Row
	for _, step := range c.steps {
		if err := ctx.Err(); err != nil {
			c.failedStep = step.name
			return nil, err
		}
		rows, err := step.run(ctx)
		if err != nil {
			c.failedStep = step.name
			return nil, err
		}
		last = rows
	}
	if last == nil {
		last = []Row{}
	}
	return last, nil
}

func (p *Proxy) staffCascade(staffID string) *cascade {
	byStaff := []policy.Filter{policy.Eq("staff_id", staffID)}
	purge := func(table domain.Table) cascadeStep {
		return cascadeStep{
			name: "purge " + string(table),
			run: func(ctx context.Context) ([]Row, error) {
				rows, err := p.store.Delete(ctx, table, byStaff)
				if errors.Is(err, pgx.ErrNoRows) {
					return []Row{}, nil
				}
				return rows, err
			},
		}
	}
	return &cascade{steps: []cascadeStep{
		purge(domain.TableBusinessDays),
		purge(domain.TableBusinessHoursOverrides),
		{
			name: "mark staff deleted",
			run: func(ctx context.Context) ([]Row, error) {
				return p.store.Update(ctx, domain.TableStaff, p.deletedMarker(),
					[]policy.Filter{policy.Eq("id", staffID)})
			},
		},
	}}
}
