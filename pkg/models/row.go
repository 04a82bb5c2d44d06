// Package models holds the row-oriented data model: tagged field values,
// rows built from (name, value) pairs, and row batches.
package models

import (
	"strings"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

// NamedValue is one (name, value) pair used to build a Row.
type NamedValue struct {
	Name  string
	Value Value
}

// Field is shorthand for building a NamedValue.
func Field(name string, v Value) NamedValue {
	return NamedValue{Name: name, Value: v}
}

// Row is an ordered sequence of named field values, positionally aligned
// with a schema. Rows are immutable once built.
type Row struct {
	names  []string
	values []Value
}

// NewRow builds a row from ordered (name, value) pairs.
func NewRow(fields ...NamedValue) Row {
	r := Row{
		names:  make([]string, len(fields)),
		values: make([]Value, len(fields)),
	}
	for i, f := range fields {
		r.names[i] = f.Name
		r.values[i] = f.Value
	}
	return r
}

// RowOf builds a row from names and values that share an index. names is
// retained, so callers producing many rows can share one slice.
func RowOf(names []string, values []Value) Row {
	return Row{names: names, values: values}
}

// Len returns the number of fields.
func (r Row) Len() int { return len(r.values) }

// Get returns the value at position i.
func (r Row) Get(i int) Value { return r.values[i] }

// Name returns the field name at position i.
func (r Row) Name(i int) string { return r.names[i] }

// Values returns a copy of the row's values.
func (r Row) Values() []Value {
	out := make([]Value, len(r.values))
	copy(out, r.values)
	return out
}

// Int64 returns the Int64 value at position i.
func (r Row) Int64(i int) (int64, error) {
	v, err := r.at(i)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt64()
	if !ok {
		return 0, r.kindError(i, KindInt64)
	}
	return n, nil
}

// Int32 returns the Int32 value at position i.
func (r Row) Int32(i int) (int32, error) {
	v, err := r.at(i)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt32()
	if !ok {
		return 0, r.kindError(i, KindInt32)
	}
	return n, nil
}

// Text returns the UTF8 value at position i.
func (r Row) Text(i int) (string, error) {
	v, err := r.at(i)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", r.kindError(i, KindUTF8)
	}
	return s, nil
}

// Equal reports whether both rows have identical names and values.
func (r Row) Equal(o Row) bool {
	if len(r.values) != len(o.values) {
		return false
	}
	for i := range r.values {
		if r.names[i] != o.names[i] || r.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Format renders the row as {name: value, ...}.
func (r Row) Format() string {
	var b strings.Builder
	b.WriteByte('{')
	for i := range r.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.names[i])
		b.WriteString(": ")
		b.WriteString(r.values[i].String())
	}
	b.WriteByte('}')
	return b.String()
}

func (r Row) at(i int) (Value, error) {
	if i < 0 || i >= len(r.values) {
		return Value{}, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"field index %d out of range for row with %d fields", i, len(r.values))
	}
	return r.values[i], nil
}

func (r Row) kindError(i int, want Kind) error {
	return errors.Newf(errors.ErrorTypeSchemaMismatch,
		"field %d (%s) holds %s, not %s", i, r.names[i], r.values[i].Kind(), want).
		WithDetail("value", r.values[i].String())
}
