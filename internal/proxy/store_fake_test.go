package proxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/policy"
)

// storeCall is one forwarded command as seen by the storage layer.
type storeCall struct {
	op      domain.Operation
	table   domain.Table
	filters []policy.Filter
	values  policy.Values
	name    string
}

// memStore is an in-memory Store that applies filters and records every
// command it receives.
type memStore struct {
	mu     sync.Mutex
	tables map[domain.Table][]Row
	calls  []storeCall
	fail   map[string]error
	result any
}

func newMemStore() *memStore {
	return &memStore{tables: map[domain.Table][]Row{}, fail: map[string]error{}}
}

func (s *memStore) failOn(op domain.Operation, table domain.Table, err error) {
	s.fail[fmt.Sprintf("%s:%s", op, table)] = err
}

func (s *memStore) record(c storeCall) error {
	s.calls = append(s.calls, c)
	return s.fail[fmt.Sprintf("%s:%s", c.op, c.table)]
}

func (s *memStore) Select(_ context.Context, q policy.Query) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(storeCall{op: domain.OperationSelect, table: q.Table, filters: q.Filters}); err != nil {
		return nil, err
	}
	out := []Row{}
	for _, row := range s.tables[q.Table] {
		if matches(row, q.Filters) {
			out = append(out, copyRow(row))
		}
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) Insert(_ context.Context, table domain.Table, values policy.Values) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(storeCall{op: domain.OperationInsert, table: table, values: values}); err != nil {
		return nil, err
	}
	row := Row{}
	for k, v := range values {
		row[k] = v
	}
	s.tables[table] = append(s.tables[table], row)
	return []Row{copyRow(row)}, nil
}

func (s *memStore) Update(_ context.Context, table domain.Table, values policy.Values, filters []policy.Filter) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(storeCall{op: domain.OperationUpdate, table: table, values: values, filters: filters}); err != nil {
		return nil, err
	}
	out := []Row{}
	for _, row := range s.tables[table] {
		if !matches(row, filters) {
			continue
		}
		for k, v := range values {
			row[k] = v
		}
		out = append(out, copyRow(row))
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, table domain.Table, filters []policy.Filter) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(storeCall{op: domain.OperationDelete, table: table, filters: filters}); err != nil {
		return nil, err
	}
	kept := s.tables[table][:0]
	out := []Row{}
	for _, row := range s.tables[table] {
		if matches(row, filters) {
			out = append(out, copyRow(row))
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return out, nil
}

func (s *memStore) Call(_ context.Context, name string, args policy.Values) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(storeCall{op: domain.OperationRPC, name: name, values: args}); err != nil {
		return nil, err
	}
	return s.result, nil
}

func matches(row Row, filters []policy.Filter) bool {
	for _, f := range filters {
		v, present := row[f.Column]
		switch f.Kind {
		case policy.FilterIsNull:
			if present && v != nil {
				return false
			}
		case policy.FilterIn:
			found := false
			for _, candidate := range f.Values {
				if candidate == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if v != f.Value {
				return false
			}
		}
	}
	return true
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
