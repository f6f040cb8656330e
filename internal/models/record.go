package models

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/spf13/cast"
)

// Value is a bin value: int64, float64, string, []byte, bool, []any or
// map[string]any, nested containers holding the same kinds.
type Value = any

// Record maps bin names to typed values.
type Record map[string]Value

// NewRecord normalizes every bin value, see NormalizeValue.
func NewRecord(bins map[string]any) (Record, error) {
	record := make(Record, len(bins))
	for name, value := range bins {
		if name == "" {
			return nil, fmt.Errorf("%w: empty bin name", ErrInvalidArgument)
		}

		v, err := NormalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("bin %q: %w", name, err)
		}
		record[name] = v
	}

	return record, nil
}

func NormalizeValue(value any) (Value, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil bin value", ErrInvalidArgument)
	case int64, float64, string, bool:
		return v, nil
	case []byte:
		return bytes.Clone(v), nil
	case int, int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return n, nil
	case float32:
		return cast.ToFloat64(v), nil
	case []any:
		list := make([]any, len(v))
		for i, item := range v {
			n, err := NormalizeValue(item)
			if err != nil {
				return nil, fmt.Errorf("list item %d: %w", i, err)
			}
			list[i] = n
		}
		return list, nil
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, item := range v {
			n, err := NormalizeValue(item)
			if err != nil {
				return nil, fmt.Errorf("map entry %q: %w", key, err)
			}
			m[key] = n
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unsupported bin value type %T", ErrInvalidArgument, value)
	}
}

func CloneValue(value Value) Value {
	switch v := value.(type) {
	case []byte:
		return bytes.Clone(v)
	case []any:
		list := make([]any, len(v))
		for i, item := range v {
			list[i] = CloneValue(item)
		}
		return list
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, item := range v {
			m[key] = CloneValue(item)
		}
		return m
	default:
		return v
	}
}

func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	clone := make(Record, len(r))
	for name, value := range r {
		clone[name] = CloneValue(value)
	}

	return clone
}

// Select returns a record holding only the named bins. With no names the record is
// returned unchanged.
func (r Record) Select(bins ...string) Record {
	if len(bins) == 0 || r == nil {
		return r
	}

	selected := make(Record, len(bins))
	for _, name := range bins {
		if value, ok := r[name]; ok {
			selected[name] = value
		}
	}

	return selected
}

func (r Record) BinNames() []string {
	names := make([]string, 0, len(r))
	for name := range maps.Keys(r) {
		names = append(names, name)
	}
	return names
}
