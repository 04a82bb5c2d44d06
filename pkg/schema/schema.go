// Package schema describes the ordered, typed field list every row and
// column writer is aligned with.
//
// Field order is the positional column index. A Schema is immutable once
// built with New, so it can be shared by a producer and a background writer.
package schema

import (
	"fmt"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/models"
)

// LogicalType is the annotated meaning of a column's physical storage.
type LogicalType uint8

const (
	LogicalNone LogicalType = iota
	LogicalInt32
	LogicalInt64
	LogicalUTF8
	LogicalTimestampMillis
)

func (t LogicalType) String() string {
	switch t {
	case LogicalNone:
		return "NONE"
	case LogicalInt32:
		return "INT_32"
	case LogicalInt64:
		return "INT_64"
	case LogicalUTF8:
		return "UTF8"
	case LogicalTimestampMillis:
		return "TIMESTAMP_MILLIS"
	default:
		return fmt.Sprintf("LOGICAL(%d)", uint8(t))
	}
}

// PhysicalType is the primitive storage type of a column.
type PhysicalType uint8

const (
	PhysicalInt32 PhysicalType = iota
	PhysicalInt64
	PhysicalByteArray
)

func (t PhysicalType) String() string {
	switch t {
	case PhysicalInt32:
		return "INT32"
	case PhysicalInt64:
		return "INT64"
	case PhysicalByteArray:
		return "BYTE_ARRAY"
	default:
		return fmt.Sprintf("PHYSICAL(%d)", uint8(t))
	}
}

// TypeKey identifies a logical/physical combination.
type TypeKey struct {
	Logical  LogicalType
	Physical PhysicalType
}

func (k TypeKey) String() string {
	return fmt.Sprintf("(%s, %s)", k.Physical, k.Logical)
}

// valueKinds maps each representable type combination to the value kind
// rows must carry for it.
var valueKinds = map[TypeKey]models.Kind{
	{LogicalNone, PhysicalInt32}:            models.KindInt32,
	{LogicalInt32, PhysicalInt32}:           models.KindInt32,
	{LogicalNone, PhysicalInt64}:            models.KindInt64,
	{LogicalInt64, PhysicalInt64}:           models.KindInt64,
	{LogicalUTF8, PhysicalByteArray}:        models.KindUTF8,
	{LogicalTimestampMillis, PhysicalInt64}: models.KindTimestampMillis,
}

// Field describes one column.
type Field struct {
	Name     string
	Logical  LogicalType
	Physical PhysicalType
	Required bool
}

// Key returns the field's type combination.
func (f Field) Key() TypeKey {
	return TypeKey{Logical: f.Logical, Physical: f.Physical}
}

// ValueKind returns the value kind rows must hold for this field.
func (f Field) ValueKind() (models.Kind, bool) {
	k, ok := valueKinds[f.Key()]
	return k, ok
}

// Int64Field is a signed 64-bit integer column.
func Int64Field(name string, required bool) Field {
	return Field{Name: name, Logical: LogicalInt64, Physical: PhysicalInt64, Required: required}
}

// Int32Field is a signed 32-bit integer column.
func Int32Field(name string, required bool) Field {
	return Field{Name: name, Logical: LogicalInt32, Physical: PhysicalInt32, Required: required}
}

// UTF8Field is a text column.
func UTF8Field(name string, required bool) Field {
	return Field{Name: name, Logical: LogicalUTF8, Physical: PhysicalByteArray, Required: required}
}

// TimestampMillisField is a UTC millisecond timestamp column.
func TimestampMillisField(name string, required bool) Field {
	return Field{Name: name, Logical: LogicalTimestampMillis, Physical: PhysicalInt64, Required: required}
}

// Schema is an ordered, immutable list of fields.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
}

// New builds a schema. Field names must be non-empty and unique.
func New(name string, fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "schema must have at least one field")
	}
	s := &Schema{
		name:   name,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "field %d has an empty name", i)
		}
		if prev, dup := s.index[f.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate field name %q at %d and %d", f.Name, prev, i)
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// MustNew is New that panics; for static schemas in tests and tools.
func MustNew(name string, fields ...Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema (message) name.
func (s *Schema) Name() string { return s.name }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns the field at position i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the field list.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of the named field.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether both schemas have the same fields in the same order.
// The schema name is not compared.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

// Project returns the sub-schema of the named columns, in the given order,
// with their positions in s.
func (s *Schema) Project(names []string) (*Schema, []int, error) {
	fields := make([]Field, 0, len(names))
	positions := make([]int, 0, len(names))
	for _, n := range names {
		i, ok := s.index[n]
		if !ok {
			return nil, nil, errors.Newf(errors.ErrorTypeSchemaMismatch, "unknown column %q", n).
				WithDetail("available", s.Names())
		}
		fields = append(fields, s.fields[i])
		positions = append(positions, i)
	}
	p, err := New(s.name, fields...)
	if err != nil {
		return nil, nil, err
	}
	return p, positions, nil
}

// ValidateRow checks that r has one value per field and that every value
// matches its field's kind. Null is accepted only for optional fields.
func (s *Schema) ValidateRow(r models.Row) error {
	if r.Len() != len(s.fields) {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"row has %d fields, schema %q has %d", r.Len(), s.name, len(s.fields))
	}
	for i, f := range s.fields {
		if err := f.validate(i, r.Get(i)); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) validate(i int, v models.Value) error {
	want, ok := f.ValueKind()
	if !ok {
		return errors.Newf(errors.ErrorTypeUnsupportedType,
			"column %d (%s): unsupported type %s", i, f.Name, f.Key())
	}
	if v.IsNull() {
		if f.Required {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %d (%s): null in required field", i, f.Name)
		}
		return nil
	}
	if v.Kind() != want {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"column %d (%s): expected %s, got %s", i, f.Name, want, v.Kind()).
			WithDetail("value", v.String())
	}
	return nil
}
