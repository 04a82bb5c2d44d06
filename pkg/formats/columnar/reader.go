package columnar

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/schema"
	"github.com/ajitpratap0/pqflow/pkg/sink"
)

// RowReader streams rows out of a Parquet file, one row group at a time.
// Each projected column keeps one decoded batch in memory.
type RowReader struct {
	src       io.Closer
	pr        *file.Reader
	schema    *schema.Schema
	positions []int
	names     []string
	batchSize int

	rowGroup  int
	remaining int64 // rows left in the current row group
	limit     int64 // rows left before the configured limit, -1 for none
	cursors   []columnCursor
}

// OpenRowReader opens location through resolver and returns a reader over it.
func OpenRowReader(ctx context.Context, resolver *sink.Resolver, location string, cfg *ReaderConfig) (*RowReader, error) {
	src, err := resolver.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	rr, err := NewRowReader(src, cfg)
	if err != nil {
		src.Close()
		return nil, errors.Wrap(err, errorType(err), "failed to open parquet file").
			WithDetail("location", location)
	}
	rr.src = src
	return rr, nil
}

// NewRowReader creates a reader over r.
func NewRowReader(r parquet.ReaderAtSeeker, cfg *ReaderConfig) (*RowReader, error) {
	if cfg == nil {
		cfg = DefaultReaderConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "invalid parquet file")
	}
	full, err := schema.FromParquet(pr.MetaData().Schema)
	if err != nil {
		pr.Close()
		return nil, err
	}

	sch, positions := full, make([]int, full.Len())
	for i := range positions {
		positions[i] = i
	}
	if len(cfg.Columns) > 0 {
		if sch, positions, err = full.Project(cfg.Columns); err != nil {
			pr.Close()
			return nil, err
		}
	}

	limit := int64(-1)
	if cfg.Limit > 0 {
		limit = cfg.Limit
	}
	return &RowReader{
		pr:        pr,
		schema:    sch,
		positions: positions,
		names:     sch.Names(),
		batchSize: cfg.BatchSize,
		limit:     limit,
	}, nil
}

// Schema returns the schema of the rows produced, after projection.
func (r *RowReader) Schema() *schema.Schema { return r.schema }

// NumRows returns the number of rows in the file, ignoring any limit.
func (r *RowReader) NumRows() int64 { return r.pr.NumRows() }

// NumRowGroups returns the number of row groups in the file.
func (r *RowReader) NumRowGroups() int { return r.pr.NumRowGroups() }

// Next returns the next row, or io.EOF when the file or the limit is
// exhausted.
func (r *RowReader) Next() (models.Row, error) {
	if r.limit == 0 {
		return models.Row{}, io.EOF
	}
	for r.remaining == 0 {
		if r.rowGroup >= r.pr.NumRowGroups() {
			return models.Row{}, io.EOF
		}
		if err := r.openRowGroup(r.rowGroup); err != nil {
			return models.Row{}, err
		}
		r.rowGroup++
	}

	values := make([]models.Value, len(r.cursors))
	for i, c := range r.cursors {
		v, err := c.next()
		if err != nil {
			return models.Row{}, errors.Wrap(err, errors.ErrorTypeIO, "failed to decode column").
				WithDetail("column", r.names[i]).
				WithDetail("row_group", r.rowGroup-1)
		}
		values[i] = v
	}
	r.remaining--
	if r.limit > 0 {
		r.limit--
	}
	return models.RowOf(r.names, values), nil
}

func (r *RowReader) openRowGroup(i int) error {
	rg := r.pr.RowGroup(i)
	cursors := make([]columnCursor, len(r.positions))
	for j, pos := range r.positions {
		cr, err := rg.Column(pos)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to open column reader").
				WithDetail("column", r.names[j]).
				WithDetail("row_group", i)
		}
		c, err := newColumnCursor(cr, r.schema.Field(j), r.batchSize)
		if err != nil {
			return err
		}
		cursors[j] = c
	}
	r.cursors = cursors
	r.remaining = rg.NumRows()
	return nil
}

// Close releases the file.
func (r *RowReader) Close() error {
	err := r.pr.Close()
	if r.src != nil {
		if cerr := r.src.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close parquet reader")
	}
	return nil
}

type columnCursor interface {
	next() (models.Value, error)
}

func newColumnCursor(cr file.ColumnChunkReader, f schema.Field, batchSize int) (columnCursor, error) {
	kind, _ := f.ValueKind()
	switch rd := cr.(type) {
	case *file.Int64ColumnChunkReader:
		conv := models.Int64
		if kind == models.KindTimestampMillis {
			conv = models.TimestampMillis
		}
		return newCursor[int64](rd, f, batchSize, conv), nil
	case *file.Int32ColumnChunkReader:
		return newCursor[int32](rd, f, batchSize, models.Int32), nil
	case *file.ByteArrayColumnChunkReader:
		return newCursor[parquet.ByteArray](rd, f, batchSize, func(b parquet.ByteArray) models.Value {
			return models.UTF8(string(b))
		}), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedType, "column %s: unsupported column reader %T", f.Name, cr)
	}
}

type batchReader[T any] interface {
	ReadBatch(batchSize int64, values []T, defLvls, repLvls []int16) (int64, int, error)
}

// cursor walks the definition levels of one decoded batch, taking a value
// for each defined level.
type cursor[T any] struct {
	rd     batchReader[T]
	conv   func(T) models.Value
	vals   []T
	defs   []int16
	levels int
	pos    int
	valPos int
}

func newCursor[T any](rd batchReader[T], f schema.Field, batchSize int, conv func(T) models.Value) *cursor[T] {
	c := &cursor[T]{rd: rd, conv: conv, vals: make([]T, batchSize)}
	if !f.Required {
		c.defs = make([]int16, batchSize)
	}
	return c
}

func (c *cursor[T]) next() (models.Value, error) {
	if c.pos == c.levels {
		levels, _, err := c.rd.ReadBatch(int64(len(c.vals)), c.vals, c.defs, nil)
		if err != nil {
			return models.Null(), err
		}
		if levels == 0 {
			return models.Null(), io.ErrUnexpectedEOF
		}
		c.levels, c.pos, c.valPos = int(levels), 0, 0
	}
	defined := c.defs == nil || c.defs[c.pos] > 0
	c.pos++
	if !defined {
		return models.Null(), nil
	}
	v := c.conv(c.vals[c.valPos])
	c.valPos++
	return v, nil
}

func errorType(err error) errors.ErrorType {
	if t, ok := errors.TypeOf(err); ok {
		return t
	}
	return errors.ErrorTypeIO
}
