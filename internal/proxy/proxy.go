package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/events"
	"github.com/nailsalon/admin-gate/internal/identity"
	"github.com/nailsalon/admin-gate/internal/policy"
	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// Store executes sanitized commands against relational storage.
type Store interface {
	Select(ctx context.Context, q policy.Query) ([]Row, error)
	Insert(ctx context.Context, table domain.Table, values policy.Values) ([]Row, error)
	Update(ctx context.Context, table domain.Table, values policy.Values, filters []policy.Filter) ([]Row, error)
	Delete(ctx context.Context, table domain.Table, filters []policy.Filter) ([]Row, error)
	Call(ctx context.Context, name string, args policy.Values) (any, error)
}

// RoleResolver derives the caller's role from its address.
type RoleResolver interface {
	ResolveRole(ctx context.Context, address string) domain.Role
}

// Bootstrap serves the procedures an unauthorized caller may invoke.
type Bootstrap interface {
	VerifyManagerName(ctx context.Context, requester, name string) (bool, error)
	IsAddressAllowed(ctx context.Context, caller identity.Caller, address string) (bool, error)
	TouchFingerprint(ctx context.Context, address, fingerprint string) (bool, error)
	Enroll(ctx context.Context, requester, address, managerName, fingerprint string) (bool, error)
}

// Recorder receives one observation per executed request.
type Recorder interface {
	RecordDecision(op domain.Operation, table string, role domain.Role, code string, duration time.Duration)
}

// Request is one proxy command.
type Request struct {
	Operation domain.Operation
	Table     domain.Table
	Function  string
	Query     QueryOptions
	Data      map[string]any
	Updates   map[string]any
	Params    map[string]any
}

// QueryOptions carries the caller's projection, filters, order and limit.
type QueryOptions struct {
	Select string
	Where  map[string]any
	Order  *Ordering
	Limit  int
}

// Ordering is a single-column sort as sent by the caller.
type Ordering struct {
	Column    string
	Ascending bool
}

// Result always carries the resolved role, with either data or an error.
type Result struct {
	Role domain.Role
	Data any
	Err  *apperrors.DomainError
}

// OK reports whether the request succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Status is the transport status for the result.
func (r Result) Status() int {
	if r.Err == nil {
		return http.StatusOK
	}
	if r.Err.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return r.Err.HTTPStatus
}

// Proxy is the single entry point for privileged data access.
type Proxy struct {
	registry   *policy.Registry
	resolver   RoleResolver
	store      Store
	bootstrap  Bootstrap
	dispatcher events.Dispatcher
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// Dependencies bundles collaborators for the proxy.
type Dependencies struct {
	Registry   *policy.Registry
	Resolver   RoleResolver
	Store      Store
	Bootstrap  Bootstrap
	Dispatcher events.Dispatcher
	Recorder   Recorder
	Logger     *zap.Logger
}

// New constructs a proxy. A nil registry means the salon schema.
func New(deps Dependencies) *Proxy {
	registry := deps.Registry
	if registry == nil {
		registry = policy.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		registry:   registry,
		resolver:   deps.Resolver,
		store:      deps.Store,
		bootstrap:  deps.Bootstrap,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute authorizes and runs one request. It never returns a raw error:
// every outcome is a Result carrying the resolved role.
func (p *Proxy) Execute(ctx context.Context, caller identity.Caller, req Request) (res Result) {
	start := p.now()
	role := domain.RoleUnauthorized
	res.Role = role

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("proxy panic",
				zap.String("operation", string(req.Operation)),
				zap.String("table", string(req.Table)),
				zap.Any("panic", rec))
			res = Result{Role: role, Err: apperrors.ToDomainError(apperrors.NewInternalError(fmt.Errorf("panic: %v", rec)))}
		}
		code := ""
		if res.Err != nil {
			code = res.Err.Code
		}
		if p.recorder != nil {
			p.recorder.RecordDecision(req.Operation, target(req), role, code, p.now().Sub(start))
		}
	}()

	role = p.resolver.ResolveRole(ctx, caller.Address)
	res.Role = role

	p.logger.Debug("proxy request",
		zap.String("operation", string(req.Operation)),
		zap.String("table", target(req)),
		zap.String("role", role.String()),
		zap.String("address", caller.Address))

	data, err := p.dispatch(ctx, caller, role, req)
	if err != nil {
		res.Err = apperrors.ToDomainError(err)
		p.logFailure(req, role, res.Err)
		return res
	}
	res.Data = data
	return res
}

func (p *Proxy) dispatch(ctx context.Context, caller identity.Caller, role domain.Role, req Request) (any, error) {
	if !req.Operation.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported operation: %s", req.Operation), nil)
	}
	if req.Operation == domain.OperationRPC {
		return p.call(ctx, caller, role, req)
	}
	if req.Table == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("table is required for %s operation", req.Operation), nil)
	}

	// Removing an allowlist entry needs a manager before anything else is considered.
	if req.Operation == domain.OperationDelete && req.Table == domain.TableAllowlist && !role.IsManager() {
		return nil, apperrors.NewAuthorizationDenied("Only manager can delete admin_allowed_ips")
	}
	if !role.IsAuthorized() {
		return nil, apperrors.NewAuthorizationDenied("Unauthorized")
	}
	if _, ok := p.registry.Table(req.Table); !ok {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("table is not governed: %s", req.Table))
	}
	if !p.registry.IsOperationAllowed(role, req.Table, req.Operation) {
		return nil, apperrors.NewAuthorizationDenied(
			fmt.Sprintf("role %s may not %s on table %s", role, req.Operation, req.Table))
	}

	switch req.Operation {
	case domain.OperationSelect:
		return p.selectRows(ctx, req)
	case domain.OperationInsert:
		return p.insert(ctx, req)
	case domain.OperationUpdate:
		return p.update(ctx, req)
	default:
		return p.delete(ctx, role, req)
	}
}

func (p *Proxy) selectRows(ctx context.Context, req Request) (any, error) {
	columns, err := p.registry.Projection(req.Table, req.Query.Select)
	if err != nil {
		return nil, err
	}
	filters, err := p.registry.Filters(req.Table, req.Query.Where)
	if err != nil {
		return nil, err
	}
	q := policy.Query{Table: req.Table, Columns: columns, Filters: filters}
	if req.Query.Order != nil {
		if q.Order, err = p.registry.OrderBy(req.Table, req.Query.Order.Column, req.Query.Order.Ascending); err != nil {
			return nil, err
		}
	}
	if req.Query.Limit < 0 {
		return nil, apperrors.NewValidationError("limit must not be negative", nil)
	}
	q.Limit = req.Query.Limit

	rows, err := p.store.Select(ctx, q)
	if err != nil {
		return nil, apperrors.NewUpstreamStorage(err)
	}
	return rows, nil
}

func (p *Proxy) insert(ctx context.Context, req Request) (any, error) {
	if req.Data == nil {
		return nil, apperrors.NewValidationError("table and data are required for insert operation", nil)
	}
	values, err := p.registry.Payload(req.Table, req.Data)
	if err != nil {
		return nil, err
	}
	rows, err := p.store.Insert(ctx, req.Table, values)
	if err != nil {
		return nil, apperrors.NewUpstreamStorage(err)
	}
	return rows, nil
}

func (p *Proxy) update(ctx context.Context, req Request) (any, error) {
	if req.Updates == nil {
		return nil, apperrors.NewValidationError("table and updates are required for update operation", nil)
	}
	values, err := p.registry.Payload(req.Table, req.Updates)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, apperrors.NewValidationError("updates contain no permitted columns", nil)
	}
	// Staff removal must go through delete so the manager guard and the
	// schedule cascade run. Clearing the marker stays possible.
	if req.Table == domain.TableStaff && values[domain.SoftDeleteColumn] != nil {
		return nil, apperrors.NewValidationError("staff can only be removed with a delete operation", nil)
	}
	filters, err := p.requiredFilters(req)
	if err != nil {
		return nil, err
	}
	rows, err := p.store.Update(ctx, req.Table, values, filters)
	if err != nil {
		return nil, apperrors.NewUpstreamStorage(err)
	}
	return rows, nil
}

// requiredFilters sanitizes the caller's filters and refuses an empty set,
// which would otherwise touch every row of the table.
func (p *Proxy) requiredFilters(req Request) ([]policy.Filter, error) {
	filters, err := p.registry.Filters(req.Table, req.Query.Where)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("at least one filter is required for %s on %s", req.Operation, req.Table), nil)
	}
	return filters, nil
}

func (p *Proxy) logFailure(req Request, role domain.Role, err *apperrors.DomainError) {
	fields := []zap.Field{
		zap.String("operation", string(req.Operation)),
		zap.String("table", target(req)),
		zap.String("role", role.String()),
		zap.String("code", err.Code),
	}
	switch err.Code {
	case apperrors.CodeUpstreamStorage, apperrors.CodeInternal:
		p.logger.Error("proxy operation failed", append(fields, zap.String("error", err.Message))...)
	default:
		p.logger.Warn("proxy operation denied", append(fields, zap.String("reason", err.Message))...)
	}
}

func (p *Proxy) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	event.Timestamp = p.now().UTC()
	if err := p.dispatcher.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func target(req Request) string {
	if req.Operation == domain.OperationRPC {
		return req.Function
	}
	return string(req.Table)
}
