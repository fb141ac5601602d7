package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ColumnType is the storage type of a governed column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeUUID
	TypeInt
	TypeBool
	TypeTimestamp
	TypeDate
	TypeTime
	TypeEnum
)

func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeUUID:
		return "uuid"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypeTimestamp:
		return "timestamptz"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeEnum:
		return "enum"
	}
	return "unknown"
}

// Column describes one permitted column of a governed table or procedure.
type Column struct {
	Type     ColumnType
	Nullable bool
	Enum     []string
}

func col(t ColumnType) Column     { return Column{Type: t} }
func nullable(t ColumnType) Column { return Column{Type: t, Nullable: true} }
func enum(values ...string) Column { return Column{Type: TypeEnum, Enum: values} }

// Coerce converts a decoded JSON value into the typed value forwarded to
// storage. nil is accepted only for nullable columns.
func (c Column) Coerce(v any) (any, error) {
	if v == nil {
		if !c.Nullable {
			return nil, fmt.Errorf("value must not be null")
		}
		return nil, nil
	}
	switch c.Type {
	case TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected text, got %T", v)
		}
		return s, nil
	case TypeUUID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected uuid string, got %T", v)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q", s)
		}
		return id.String(), nil
	case TypeInt:
		return coerceInt(v)
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
		return b, nil
	case TypeTimestamp:
		switch tv := v.(type) {
		case time.Time:
			return tv, nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, tv)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q", tv)
			}
			return ts, nil
		}
		return nil, fmt.Errorf("expected timestamp string, got %T", v)
	case TypeDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected date string, got %T", v)
		}
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return nil, fmt.Errorf("invalid date %q", s)
		}
		return s, nil
	case TypeTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected time string, got %T", v)
		}
		if _, err := time.Parse("15:04:05", s); err == nil {
			return s, nil
		}
		if _, err := time.Parse("15:04", s); err == nil {
			return s, nil
		}
		return nil, fmt.Errorf("invalid time %q", s)
	case TypeEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected one of %v, got %T", c.Enum, v)
		}
		for _, allowed := range c.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("expected one of %v, got %q", c.Enum, s)
	}
	return nil, fmt.Errorf("unsupported column type %s", c.Type)
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %s", n)
		}
		return i, nil
	}
	return nil, fmt.Errorf("expected integer, got %T", v)
}
