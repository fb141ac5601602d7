package policy

import (
	"github.com/nailsalon/admin-gate/internal/domain"
)

// DeleteStrategy decides how a delete operation is carried out.
type DeleteStrategy string

const (
	DeleteSoft DeleteStrategy = "soft"
	DeleteHard DeleteStrategy = "hard"
)

// TableSchema is the static policy for one governed table.
type TableSchema struct {
	Name    domain.Table
	Delete  DeleteStrategy
	Columns map[string]Column
	// StaffOperations lists what the staff role may do. Managers may do everything.
	StaffOperations []domain.Operation
	// ManagerOnly denies staff regardless of StaffOperations.
	ManagerOnly bool
}

// HasColumn reports whether name is a permitted column.
func (t TableSchema) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

// Registry holds table and procedure policy. It performs no I/O.
type Registry struct {
	tables     map[domain.Table]TableSchema
	procedures map[string]Procedure
}

// NewRegistry builds a registry from explicit table and procedure lists.
func NewRegistry(tables []TableSchema, procedures []Procedure) *Registry {
	r := &Registry{
		tables:     make(map[domain.Table]TableSchema, len(tables)),
		procedures: make(map[string]Procedure, len(procedures)),
	}
	for _, t := range tables {
		r.tables[t.Name] = t
	}
	for _, p := range procedures {
		r.procedures[p.Name] = p
	}
	return r
}

// Table returns the schema for a governed table.
func (r *Registry) Table(name domain.Table) (TableSchema, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Tables lists every governed table.
func (r *Registry) Tables() []TableSchema {
	out := make([]TableSchema, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	return out
}

// DeleteStrategyFor returns how rows of table are deleted. Unknown tables
// report hard delete with ok=false; the proxy denies them before this matters.
func (r *Registry) DeleteStrategyFor(table domain.Table) (DeleteStrategy, bool) {
	t, ok := r.tables[table]
	if !ok {
		return DeleteHard, false
	}
	return t.Delete, true
}

// HasSoftDeleteColumn reports whether the soft-delete marker may reach storage for table.
func (r *Registry) HasSoftDeleteColumn(table domain.Table) bool {
	t, ok := r.tables[table]
	return ok && t.Delete == DeleteSoft && t.HasColumn(domain.SoftDeleteColumn)
}

// IsOperationAllowed applies the role rules for table operations:
// managers may do anything on governed tables, manager-only tables deny
// staff, staff otherwise get only their listed operations, and unauthorized
// callers get nothing. Remote calls go through IsProcedureAllowed instead.
func (r *Registry) IsOperationAllowed(role domain.Role, table domain.Table, op domain.Operation) bool {
	t, ok := r.tables[table]
	if !ok || op == domain.OperationRPC || !op.Valid() {
		return false
	}
	switch role {
	case domain.RoleManager:
		return true
	case domain.RoleStaff:
		if t.ManagerOnly {
			return false
		}
		for _, allowed := range t.StaffOperations {
			if allowed == op {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsProcedureAllowed reports whether role may call the named procedure.
// Non-managers are limited to bootstrap procedures.
func (r *Registry) IsProcedureAllowed(role domain.Role, name string) bool {
	p, ok := r.procedures[name]
	if !ok {
		return false
	}
	if role == domain.RoleManager {
		return true
	}
	return p.Bootstrap
}

// Procedure returns a registered procedure.
func (r *Registry) Procedure(name string) (Procedure, bool) {
	p, ok := r.procedures[name]
	return p, ok
}
