package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is a dynamic row: column names and values in cursor order.
// Projections return Records; every Registry maps Record by default.
type Record struct {
	columns []string
	values  []any
}

// NewRecord creates a Record. columns and values must have equal length.
func NewRecord(columns []string, values []any) Record {
	c := make([]string, len(columns))
	copy(c, columns)
	v := make([]any, len(values))
	copy(v, values)
	return Record{columns: c, values: v}
}

// Columns returns the column names in order.
func (r Record) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Values returns the values in column order.
func (r Record) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of columns.
func (r Record) Len() int {
	return len(r.columns)
}

// Get returns the value of the named column. An exact match wins over a
// case-insensitive one.
func (r Record) Get(column string) (any, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	for i, c := range r.columns {
		if strings.EqualFold(c, column) {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the record as a map. Duplicate column names keep the last value.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// String renders "col=value" pairs in column order.
func (r Record) String() string {
	parts := make([]string, len(r.columns))
	for i, c := range r.columns {
		parts[i] = fmt.Sprintf("%s=%v", c, r.values[i])
	}
	return strings.Join(parts, " ")
}

// MarshalJSON encodes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// hydrateRecord copies every column of the current row. Text returned as
// []byte is converted to string.
func hydrateRecord(row Row) (Record, error) {
	cols, err := row.Columns()
	if err != nil {
		return Record{}, fmt.Errorf("read columns: %w", err)
	}

	values := make([]any, len(cols))
	for i := range cols {
		v, err := row.Value(i)
		if err != nil {
			return Record{}, fmt.Errorf("read column %q: %w", cols[i], err)
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values[i] = v
	}
	return Record{columns: cols, values: values}, nil
}
