package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/policy"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// TableStore executes sanitized proxy commands against Postgres. Identifiers
// arrive checked against the policy registry and are quoted regardless;
// values are always bound as parameters.
type TableStore struct {
	db Querier
}

// NewTableStore returns a store backed by db.
func NewTableStore(db Querier) *TableStore {
	return &TableStore{db: db}
}

func (s *TableStore) Select(ctx context.Context, q policy.Query) ([]Row, error) {
	sql, args := buildSelect(q)
	return s.collect(ctx, sql, args)
}

func (s *TableStore) Insert(ctx context.Context, table domain.Table, values policy.Values) ([]Row, error) {
	sql, args := buildInsert(table, values)
	return s.collect(ctx, sql, args)
}

func (s *TableStore) Update(ctx context.Context, table domain.Table, values policy.Values, filters []policy.Filter) ([]Row, error) {
	sql, args := buildUpdate(table, values, filters)
	return s.collect(ctx, sql, args)
}

func (s *TableStore) Delete(ctx context.Context, table domain.Table, filters []policy.Filter) ([]Row, error) {
	sql, args := buildDelete(table, filters)
	return s.collect(ctx, sql, args)
}

// Call invokes a stored procedure with named arguments. A single row with a
// single column is unwrapped to its value.
func (s *TableStore) Call(ctx context.Context, name string, args policy.Values) (any, error) {
	sql, params := buildCall(name, args)
	rows, err := s.collect(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		if len(rows[0]) == 1 {
			for _, v := range rows[0] {
				return v, nil
			}
		}
		return rows[0], nil
	default:
		return rows, nil
	}
}

func (s *TableStore) collect(ctx context.Context, sql string, args []any) ([]Row, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	result, err := pgx.CollectRows(rows, rowToWireMap)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []Row{}
	}
	return result, nil
}

// rowToWireMap collects a row with values in the shape clients send them:
// uuids as canonical strings, TIME as HH:MM:SS and DATE as YYYY-MM-DD.
func rowToWireMap(row pgx.CollectableRow) (Row, error) {
	values, err := row.Values()
	if err != nil {
		return nil, err
	}
	fields := row.FieldDescriptions()
	out := make(Row, len(values))
	for i, fd := range fields {
		out[fd.Name] = wireValue(fd.DataTypeOID, values[i])
	}
	return out, nil
}

func wireValue(oid uint32, v any) any {
	switch v := v.(type) {
	case [16]byte:
		return uuid.UUID(v).String()
	case pgtype.Time:
		if !v.Valid {
			return nil
		}
		return time.Time{}.Add(time.Duration(v.Microseconds) * time.Microsecond).Format(time.TimeOnly)
	case time.Time:
		if oid == pgtype.DateOID {
			return v.Format(time.DateOnly)
		}
	}
	return v
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func buildSelect(q policy.Query) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		sb.WriteString("*")
	} else {
		quoted := make([]string, 0, len(q.Columns))
		for _, c := range q.Columns {
			quoted = append(quoted, ident(c))
		}
		sb.WriteString(strings.Join(quoted, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(ident(string(q.Table)))

	args := appendWhere(&sb, nil, q.Filters)

	if q.Order != nil {
		dir := "DESC"
		if q.Order.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", ident(q.Order.Column), dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args
}

func buildInsert(table domain.Table, values policy.Values) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(ident(string(table)))

	keys := sortedValueKeys(values)
	if len(keys) == 0 {
		sb.WriteString(" DEFAULT VALUES RETURNING *")
		return sb.String(), nil
	}

	cols := make([]string, 0, len(keys))
	placeholders := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, values[k])
		cols = append(cols, ident(k))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	fmt.Fprintf(&sb, " (%s) VALUES (%s) RETURNING *", strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return sb.String(), args
}

func buildUpdate(table domain.Table, values policy.Values, filters []policy.Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(ident(string(table)))
	sb.WriteString(" SET ")

	keys := sortedValueKeys(values)
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, values[k])
		sets = append(sets, fmt.Sprintf("%s=$%d", ident(k), len(args)))
	}
	sb.WriteString(strings.Join(sets, ", "))

	args = appendWhere(&sb, args, filters)
	sb.WriteString(" RETURNING *")
	return sb.String(), args
}

func buildDelete(table domain.Table, filters []policy.Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(ident(string(table)))
	args := appendWhere(&sb, nil, filters)
	sb.WriteString(" RETURNING *")
	return sb.String(), args
}

func buildCall(name string, values policy.Values) (string, []any) {
	keys := sortedValueKeys(values)
	named := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, values[k])
		named = append(named, fmt.Sprintf("%s => $%d", ident(k), len(args)))
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", ident(name), strings.Join(named, ", ")), args
}

func appendWhere(sb *strings.Builder, args []any, filters []policy.Filter) []any {
	if len(filters) == 0 {
		return args
	}
	clauses := make([]string, 0, len(filters))
	for _, f := range filters {
		switch f.Kind {
		case policy.FilterIsNull:
			clauses = append(clauses, ident(f.Column)+" IS NULL")
		case policy.FilterIn:
			if len(f.Values) == 0 {
				clauses = append(clauses, "FALSE")
				continue
			}
			placeholders := make([]string, 0, len(f.Values))
			for _, v := range f.Values {
				args = append(args, v)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", ident(f.Column), strings.Join(placeholders, ", ")))
		default:
			args = append(args, f.Value)
			clauses = append(clauses, fmt.Sprintf("%s = $%d", ident(f.Column), len(args)))
		}
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(clauses, " AND "))
	return args
}

func sortedValueKeys(values policy.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
