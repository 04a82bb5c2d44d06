package columnar

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/schema"
)

// RowGroupWriter hands out one column writer per call, in schema order.
// file.SerialRowGroupWriter satisfies it.
type RowGroupWriter interface {
	NextColumn() (file.ColumnChunkWriter, error)
}

// ColumnStats are exact statistics for one column of one row group.
type ColumnStats struct {
	Name      string       `json:"name"`
	NullCount int64        `json:"null_count"`
	HasMinMax bool         `json:"has_min_max"`
	Min       models.Value `json:"min"`
	Max       models.Value `json:"max"`
}

// RowGroupSummary describes a written row group.
type RowGroupSummary struct {
	Index   int           `json:"index"`
	Rows    int64         `json:"rows"`
	Columns []ColumnStats `json:"columns"`
}

// ColumnBatch is one column of a row batch in column-major form. Only one
// of the value slices is populated; it holds the non-null values in row
// order. DefLevels is nil for required fields.
type ColumnBatch struct {
	Field     schema.Field
	Int32s    []int32
	Int64s    []int64
	Bytes     []parquet.ByteArray
	DefLevels []int16
	Stats     ColumnStats
}

func newColumnBatch(f schema.Field, rows int) *ColumnBatch {
	cb := &ColumnBatch{Field: f, Stats: ColumnStats{Name: f.Name}}
	if !f.Required {
		cb.DefLevels = make([]int16, 0, rows)
	}
	return cb
}

func (cb *ColumnBatch) define(present bool) {
	if cb.DefLevels == nil {
		return
	}
	if present {
		cb.DefLevels = append(cb.DefLevels, 1)
		return
	}
	cb.DefLevels = append(cb.DefLevels, 0)
	cb.Stats.NullCount++
}

type columnEncoder interface {
	transpose(f schema.Field, col int, rows []models.Row) *ColumnBatch
	write(w file.ColumnChunkWriter, cb *ColumnBatch) error
}

// encoders is the closed set of supported type combinations.
var encoders = map[schema.TypeKey]columnEncoder{
	{Logical: schema.LogicalNone, Physical: schema.PhysicalInt64}:            int64Encoder{kind: models.KindInt64},
	{Logical: schema.LogicalInt64, Physical: schema.PhysicalInt64}:           int64Encoder{kind: models.KindInt64},
	{Logical: schema.LogicalTimestampMillis, Physical: schema.PhysicalInt64}: int64Encoder{kind: models.KindTimestampMillis},
	{Logical: schema.LogicalNone, Physical: schema.PhysicalInt32}:            int32Encoder{},
	{Logical: schema.LogicalInt32, Physical: schema.PhysicalInt32}:           int32Encoder{},
	{Logical: schema.LogicalUTF8, Physical: schema.PhysicalByteArray}:        utf8Encoder{},
}

// ValidateSchema rejects schemas containing a field the encoder cannot
// write.
func ValidateSchema(s *schema.Schema) error {
	_, err := lookupEncoders(s)
	return err
}

func lookupEncoders(s *schema.Schema) ([]columnEncoder, error) {
	out := make([]columnEncoder, s.Len())
	for i, f := range s.Fields() {
		enc, ok := encoders[f.Key()]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeUnsupportedType,
				"column %d (%s): no encoder for type %s", i, f.Name, f.Key()).
				WithDetail("column", f.Name)
		}
		out[i] = enc
	}
	return out, nil
}

// Encoder transposes row batches and writes them as Parquet row groups.
type Encoder struct {
	schema   *schema.Schema
	encoders []columnEncoder
}

// NewEncoder creates an encoder for s.
func NewEncoder(s *schema.Schema) (*Encoder, error) {
	encs, err := lookupEncoders(s)
	if err != nil {
		return nil, err
	}
	return &Encoder{schema: s, encoders: encs}, nil
}

// Schema returns the encoder's schema.
func (e *Encoder) Schema() *schema.Schema {
	return e.schema
}

// Transpose validates every row and converts the batch to column-major
// form. Nothing is written; a rejected batch has no side effects.
func (e *Encoder) Transpose(rows []models.Row) ([]*ColumnBatch, error) {
	for i, r := range rows {
		if err := e.schema.ValidateRow(r); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchemaMismatch, fmt.Sprintf("row %d rejected", i)).
				WithDetail("row", i)
		}
	}
	cols := make([]*ColumnBatch, len(e.encoders))
	for i, enc := range e.encoders {
		cols[i] = enc.transpose(e.schema.Field(i), i, rows)
	}
	return cols, nil
}

// WriteColumns writes previously transposed columns into rgw.
func (e *Encoder) WriteColumns(rgw RowGroupWriter, cols []*ColumnBatch) error {
	if len(cols) != len(e.encoders) {
		return errors.Newf(errors.ErrorTypeInternal, "got %d columns, schema has %d", len(cols), len(e.encoders))
	}
	for i, cb := range cols {
		cw, err := rgw.NextColumn()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to open column writer").
				WithDetail("column", cb.Field.Name)
		}
		if cw == nil {
			return errors.Newf(errors.ErrorTypeIO, "no column writer for column %d (%s)", i, cb.Field.Name)
		}
		if err := e.encoders[i].write(cw, cb); err != nil {
			return err
		}
	}
	return nil
}

// Encode transposes rows and writes them into rgw as one row group.
func (e *Encoder) Encode(rgw RowGroupWriter, rows []models.Row) (*RowGroupSummary, error) {
	cols, err := e.Transpose(rows)
	if err != nil {
		return nil, err
	}
	if err := e.WriteColumns(rgw, cols); err != nil {
		return nil, err
	}
	return summarize(rows, cols), nil
}

func summarize(rows []models.Row, cols []*ColumnBatch) *RowGroupSummary {
	s := &RowGroupSummary{Rows: int64(len(rows)), Columns: make([]ColumnStats, len(cols))}
	for i, cb := range cols {
		s.Columns[i] = cb.Stats
	}
	return s
}

func writerMismatch(cb *ColumnBatch, want string, got file.ColumnChunkWriter) error {
	return errors.Newf(errors.ErrorTypeInternal, "column %s: expected %s column writer, got %T", cb.Field.Name, want, got)
}

type int64Encoder struct {
	kind models.Kind
}

func (enc int64Encoder) payload(v models.Value) int64 {
	if enc.kind == models.KindTimestampMillis {
		n, _ := v.AsTimestampMillis()
		return n
	}
	n, _ := v.AsInt64()
	return n
}

func (enc int64Encoder) value(n int64) models.Value {
	if enc.kind == models.KindTimestampMillis {
		return models.TimestampMillis(n)
	}
	return models.Int64(n)
}

func (enc int64Encoder) transpose(f schema.Field, col int, rows []models.Row) *ColumnBatch {
	cb := newColumnBatch(f, len(rows))
	cb.Int64s = make([]int64, 0, len(rows))
	for _, r := range rows {
		v := r.Get(col)
		cb.define(!v.IsNull())
		if !v.IsNull() {
			cb.Int64s = append(cb.Int64s, enc.payload(v))
		}
	}
	if lo, hi, ok := minMax(cb.Int64s); ok {
		cb.Stats.HasMinMax = true
		cb.Stats.Min, cb.Stats.Max = enc.value(lo), enc.value(hi)
	}
	return cb
}

func (enc int64Encoder) write(cw file.ColumnChunkWriter, cb *ColumnBatch) error {
	w, ok := cw.(*file.Int64ColumnChunkWriter)
	if !ok {
		return writerMismatch(cb, "int64", cw)
	}
	if _, err := w.WriteBatch(cb.Int64s, cb.DefLevels, nil); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write int64 column").WithDetail("column", cb.Field.Name)
	}
	return nil
}

type int32Encoder struct{}

func (int32Encoder) transpose(f schema.Field, col int, rows []models.Row) *ColumnBatch {
	cb := newColumnBatch(f, len(rows))
	cb.Int32s = make([]int32, 0, len(rows))
	for _, r := range rows {
		v := r.Get(col)
		cb.define(!v.IsNull())
		if n, ok := v.AsInt32(); ok {
			cb.Int32s = append(cb.Int32s, n)
		}
	}
	if lo, hi, ok := minMax(cb.Int32s); ok {
		cb.Stats.HasMinMax = true
		cb.Stats.Min, cb.Stats.Max = models.Int32(lo), models.Int32(hi)
	}
	return cb
}

func (int32Encoder) write(cw file.ColumnChunkWriter, cb *ColumnBatch) error {
	w, ok := cw.(*file.Int32ColumnChunkWriter)
	if !ok {
		return writerMismatch(cb, "int32", cw)
	}
	if _, err := w.WriteBatch(cb.Int32s, cb.DefLevels, nil); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write int32 column").WithDetail("column", cb.Field.Name)
	}
	return nil
}

// utf8Encoder keeps exact byte-wise min and max, matching the unsigned
// sort order Parquet uses for UTF8 columns.
type utf8Encoder struct{}

func (utf8Encoder) transpose(f schema.Field, col int, rows []models.Row) *ColumnBatch {
	cb := newColumnBatch(f, len(rows))
	cb.Bytes = make([]parquet.ByteArray, 0, len(rows))
	texts := make([]string, 0, len(rows))
	for _, r := range rows {
		v := r.Get(col)
		cb.define(!v.IsNull())
		if s, ok := v.AsString(); ok {
			texts = append(texts, s)
			cb.Bytes = append(cb.Bytes, parquet.ByteArray(s))
		}
	}
	if lo, hi, ok := minMax(texts); ok {
		cb.Stats.HasMinMax = true
		cb.Stats.Min, cb.Stats.Max = models.UTF8(lo), models.UTF8(hi)
	}
	return cb
}

func (utf8Encoder) write(cw file.ColumnChunkWriter, cb *ColumnBatch) error {
	w, ok := cw.(*file.ByteArrayColumnChunkWriter)
	if !ok {
		return writerMismatch(cb, "byte array", cw)
	}
	if _, err := w.WriteBatch(cb.Bytes, cb.DefLevels, nil); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write utf8 column").WithDetail("column", cb.Field.Name)
	}
	return nil
}

func minMax[T cmp.Ordered](vals []T) (lo, hi T, ok bool) {
	if len(vals) == 0 {
		return lo, hi, false
	}
	return slices.Min(vals), slices.Max(vals), true
}
