package schema

import (
	"github.com/apache/arrow-go/v18/parquet"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

// ToParquet converts the schema into a flat Parquet message node.
func (s *Schema) ToParquet() (*pqschema.GroupNode, error) {
	nodes := make(pqschema.FieldList, 0, len(s.fields))
	for i, f := range s.fields {
		n, err := f.toParquet()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "failed to convert schema").
				WithDetail("column", i)
		}
		nodes = append(nodes, n)
	}
	name := s.name
	if name == "" {
		name = "schema"
	}
	root, err := pqschema.NewGroupNode(name, parquet.Repetitions.Required, nodes, -1)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build parquet schema")
	}
	return root, nil
}

func (f Field) toParquet() (pqschema.Node, error) {
	rep := parquet.Repetitions.Optional
	if f.Required {
		rep = parquet.Repetitions.Required
	}

	var (
		node *pqschema.PrimitiveNode
		err  error
	)
	switch f.Key() {
	case TypeKey{LogicalNone, PhysicalInt64}:
		node, err = pqschema.NewPrimitiveNode(f.Name, rep, parquet.Types.Int64, -1, -1)
	case TypeKey{LogicalNone, PhysicalInt32}:
		node, err = pqschema.NewPrimitiveNode(f.Name, rep, parquet.Types.Int32, -1, -1)
	case TypeKey{LogicalInt64, PhysicalInt64}:
		node, err = pqschema.NewPrimitiveNodeLogical(f.Name, rep,
			pqschema.NewIntLogicalType(64, true), parquet.Types.Int64, 0, -1)
	case TypeKey{LogicalInt32, PhysicalInt32}:
		node, err = pqschema.NewPrimitiveNodeLogical(f.Name, rep,
			pqschema.NewIntLogicalType(32, true), parquet.Types.Int32, 0, -1)
	case TypeKey{LogicalUTF8, PhysicalByteArray}:
		node, err = pqschema.NewPrimitiveNodeLogical(f.Name, rep,
			pqschema.StringLogicalType{}, parquet.Types.ByteArray, 0, -1)
	case TypeKey{LogicalTimestampMillis, PhysicalInt64}:
		node, err = pqschema.NewPrimitiveNodeLogical(f.Name, rep,
			pqschema.NewTimestampLogicalType(true, pqschema.TimeUnitMillis), parquet.Types.Int64, 0, -1)
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
			"field %s: no parquet mapping for %s", f.Name, f.Key())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build parquet node").
			WithDetail("field", f.Name)
	}
	return node, nil
}

// FromParquet rebuilds a Schema from a file's Parquet schema. Only flat
// schemas of the supported type combinations are accepted.
func FromParquet(sc *pqschema.Schema) (*Schema, error) {
	fields := make([]Field, 0, sc.NumColumns())
	for i := 0; i < sc.NumColumns(); i++ {
		col := sc.Column(i)
		if col.MaxRepetitionLevel() > 0 || col.MaxDefinitionLevel() > 1 {
			return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
				"column %d (%s): nested or repeated columns are not supported", i, col.Path())
		}
		f, err := fieldFromColumn(col)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	name := "schema"
	if root := sc.Root(); root != nil {
		name = root.Name()
	}
	return New(name, fields...)
}

// IsTimestampMillis reports whether col holds INT64 millisecond timestamps,
// adjusted to UTC or not, by logical type or legacy converted type.
func IsTimestampMillis(col *pqschema.Column) bool {
	if col.PhysicalType() != parquet.Types.Int64 {
		return false
	}
	lt := col.LogicalType()
	if lt == nil || lt.Equals(pqschema.NoLogicalType{}) {
		return col.ConvertedType() == pqschema.ConvertedTypes.TimestampMillis
	}
	ts, ok := lt.(pqschema.TimestampLogicalType)
	return ok && ts.TimeUnit() == pqschema.TimeUnitMillis
}

func fieldFromColumn(col *pqschema.Column) (Field, error) {
	f := Field{Name: col.Name(), Required: col.MaxDefinitionLevel() == 0}

	switch col.PhysicalType() {
	case parquet.Types.Int32:
		f.Physical = PhysicalInt32
	case parquet.Types.Int64:
		f.Physical = PhysicalInt64
	case parquet.Types.ByteArray:
		f.Physical = PhysicalByteArray
	default:
		return Field{}, errors.Newf(errors.ErrorTypeUnsupportedType,
			"column %s: unsupported physical type %s", col.Name(), col.PhysicalType())
	}

	lt := col.LogicalType()
	ct := col.ConvertedType()
	switch {
	case lt == nil || lt.Equals(pqschema.NoLogicalType{}):
		switch ct {
		case pqschema.ConvertedTypes.None:
			f.Logical = LogicalNone
		case pqschema.ConvertedTypes.UTF8:
			f.Logical = LogicalUTF8
		case pqschema.ConvertedTypes.Int64:
			f.Logical = LogicalInt64
		case pqschema.ConvertedTypes.Int32:
			f.Logical = LogicalInt32
		case pqschema.ConvertedTypes.TimestampMillis:
			f.Logical = LogicalTimestampMillis
		default:
			return Field{}, errors.Newf(errors.ErrorTypeUnsupportedType,
				"column %s: unsupported converted type %s", col.Name(), ct)
		}
	case lt.Equals(pqschema.StringLogicalType{}):
		f.Logical = LogicalUTF8
	case lt.Equals(pqschema.NewIntLogicalType(64, true)):
		f.Logical = LogicalInt64
	case lt.Equals(pqschema.NewIntLogicalType(32, true)):
		f.Logical = LogicalInt32
	case IsTimestampMillis(col):
		f.Logical = LogicalTimestampMillis
	default:
		return Field{}, errors.Newf(errors.ErrorTypeUnsupportedType,
			"column %s: unsupported logical type %s", col.Name(), lt)
	}

	if _, ok := f.ValueKind(); !ok {
		return Field{}, errors.Newf(errors.ErrorTypeUnsupportedType,
			"column %s: unsupported type %s", col.Name(), f.Key())
	}
	return f, nil
}
