package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nailsalon/admin-gate/internal/domain"
	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

// FilterKind selects the comparison a Filter performs.
type FilterKind int

const (
	FilterEq FilterKind = iota
	FilterIn
	FilterIsNull
)

// Filter is one typed condition on a permitted column.
type Filter struct {
	Column string
	Kind   FilterKind
	Value  any
	Values []any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Kind: FilterEq, Value: value}
}

// Values is a typed column payload for insert or update.
type Values map[string]any

// Order is a single-column sort.
type Order struct {
	Column    string
	Ascending bool
}

// Query is a sanitized select.
type Query struct {
	Table   domain.Table
	Columns []string
	Filters []Filter
	Order   *Order
	Limit   int
}

// Procedure is a callable remote procedure with its typed parameters.
type Procedure struct {
	Name      string
	Params    map[string]Column
	Bootstrap bool
}

// Filters converts caller-supplied conditions into typed filters. The
// soft-delete marker is dropped silently on tables without the column.
// nil means IS NULL and an array means membership.
func (r *Registry) Filters(table domain.Table, where map[string]any) ([]Filter, error) {
	schema, ok := r.tables[table]
	if !ok {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("unknown table: %s", table))
	}
	keys := sortedKeys(where)
	filters := make([]Filter, 0, len(keys))
	for _, key := range keys {
		if r.dropsMarker(table, key) {
			continue
		}
		column, ok := schema.Columns[key]
		if !ok {
			return nil, unknownColumn(table, key)
		}
		raw := where[key]
		switch v := raw.(type) {
		case nil:
			filters = append(filters, Filter{Column: key, Kind: FilterIsNull})
		case []any:
			values := make([]any, 0, len(v))
			for _, item := range v {
				if item == nil {
					return nil, invalidValue(table, key, fmt.Errorf("null is not allowed in a membership filter"))
				}
				typed, err := column.Coerce(item)
				if err != nil {
					return nil, invalidValue(table, key, err)
				}
				values = append(values, typed)
			}
			filters = append(filters, Filter{Column: key, Kind: FilterIn, Values: values})
		default:
			typed, err := column.Coerce(v)
			if err != nil {
				return nil, invalidValue(table, key, err)
			}
			filters = append(filters, Eq(key, typed))
		}
	}
	return filters, nil
}

// Payload converts an insert or update map into typed values, dropping the
// soft-delete marker on tables without the column.
func (r *Registry) Payload(table domain.Table, data map[string]any) (Values, error) {
	schema, ok := r.tables[table]
	if !ok {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("unknown table: %s", table))
	}
	out := make(Values, len(data))
	for key, raw := range data {
		if r.dropsMarker(table, key) {
			continue
		}
		column, ok := schema.Columns[key]
		if !ok {
			return nil, unknownColumn(table, key)
		}
		typed, err := column.Coerce(raw)
		if err != nil {
			return nil, invalidValue(table, key, err)
		}
		out[key] = typed
	}
	return out, nil
}

// Projection parses a comma separated column list. Empty or "*" selects all columns.
func (r *Registry) Projection(table domain.Table, sel string) ([]string, error) {
	schema, ok := r.tables[table]
	if !ok {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("unknown table: %s", table))
	}
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == "*" {
		return nil, nil
	}
	parts := strings.Split(sel, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !schema.HasColumn(name) {
			return nil, unknownColumn(table, name)
		}
		columns = append(columns, name)
	}
	if len(columns) == 0 {
		return nil, nil
	}
	return columns, nil
}

// OrderBy validates an order column.
func (r *Registry) OrderBy(table domain.Table, column string, ascending bool) (*Order, error) {
	schema, ok := r.tables[table]
	if !ok {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("unknown table: %s", table))
	}
	if !schema.HasColumn(column) {
		return nil, unknownColumn(table, column)
	}
	return &Order{Column: column, Ascending: ascending}, nil
}

// ProcedureArgs converts call arguments into typed values. Missing
// non-nullable parameters are rejected.
func (r *Registry) ProcedureArgs(name string, args map[string]any) (Values, error) {
	proc, ok := r.procedures[name]
	if !ok {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("unknown procedure: %s", name))
	}
	out := make(Values, len(proc.Params))
	for key := range args {
		if _, ok := proc.Params[key]; !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown parameter %s for %s", key, name), nil)
		}
	}
	for key, column := range proc.Params {
		raw, present := args[key]
		if !present {
			if column.Nullable {
				continue
			}
			return nil, apperrors.NewValidationError(fmt.Sprintf("%s is required for %s", key, name), nil)
		}
		typed, err := column.Coerce(raw)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid %s for %s: %v", key, name, err), nil)
		}
		out[key] = typed
	}
	return out, nil
}

func (r *Registry) dropsMarker(table domain.Table, key string) bool {
	return key == domain.SoftDeleteColumn && !r.HasSoftDeleteColumn(table)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unknownColumn(table domain.Table, column string) error {
	return apperrors.NewValidationError(
		fmt.Sprintf("unknown column %s on table %s", column, table),
		map[string]any{"table": string(table), "column": column},
	)
}

func invalidValue(table domain.Table, column string, err error) error {
	return apperrors.NewValidationError(
		fmt.Sprintf("invalid value for %s.%s: %v", table, column, err),
		map[string]any{"table": string(table), "column": column},
	)
}
