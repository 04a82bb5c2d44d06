package columnar

import (
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/parquet/file"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/schema"
)

// FileWriter writes row groups to a single Parquet file. It is not safe for
// concurrent use.
type FileWriter struct {
	encoder   *Encoder
	out       *onceCloser
	pw        *file.Writer
	rowGroups int
	rows      int64
	closed    bool
}

// NewFileWriter creates a Parquet writer over out. The writer owns out and
// closes it in Close.
func NewFileWriter(out io.WriteCloser, s *schema.Schema, cfg *WriterConfig) (*FileWriter, error) {
	if cfg == nil {
		cfg = DefaultWriterConfig()
	}
	enc, err := NewEncoder(s)
	if err != nil {
		return nil, err
	}
	root, err := s.ToParquet()
	if err != nil {
		return nil, err
	}
	props, err := cfg.properties()
	if err != nil {
		return nil, err
	}

	oc := &onceCloser{WriteCloser: out}
	return &FileWriter{
		encoder: enc,
		out:     oc,
		pw:      file.NewParquetWriter(oc, root, file.WithWriterProps(props)),
	}, nil
}

// WriteRowGroup encodes rows as exactly one row group. Rows are validated
// and transposed before the row group is opened, so a rejected batch leaves
// the file unchanged.
func (fw *FileWriter) WriteRowGroup(rows []models.Row) (*RowGroupSummary, error) {
	if fw.closed {
		return nil, errors.New(errors.ErrorTypeInternal, "write to closed file writer")
	}
	cols, err := fw.encoder.Transpose(rows)
	if err != nil {
		return nil, err
	}

	rgw := fw.pw.AppendRowGroup()
	if err := fw.encoder.WriteColumns(rgw, cols); err != nil {
		rgw.Close()
		return nil, err
	}
	if err := rgw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to close row group").
			WithDetail("row_group", fw.rowGroups)
	}

	summary := summarize(rows, cols)
	summary.Index = fw.rowGroups
	fw.rowGroups++
	fw.rows += summary.Rows
	return summary, nil
}

// RowGroups returns the number of row groups written.
func (fw *FileWriter) RowGroups() int { return fw.rowGroups }

// Rows returns the number of rows written.
func (fw *FileWriter) Rows() int64 { return fw.rows }

// Close writes the footer and closes the underlying sink.
func (fw *FileWriter) Close() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	if err := fw.pw.Close(); err != nil {
		fw.out.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to finalize parquet file")
	}
	if err := fw.out.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close sink")
	}
	return nil
}

// onceCloser lets both the Parquet writer and FileWriter close the sink.
type onceCloser struct {
	io.WriteCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.WriteCloser.Close()
	})
	return c.err
}
