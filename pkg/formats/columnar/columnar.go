// Package columnar encodes row batches into Parquet row groups and reads
// Parquet files back as rows.
package columnar

import (
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

// Compression names accepted in WriterConfig.
const (
	CompressionNone   = "uncompressed"
	CompressionSnappy = "snappy"
	CompressionGzip   = "gzip"
	CompressionZstd   = "zstd"
	CompressionBrotli = "brotli"
)

// DefaultCreatedBy is recorded in the footer of every file written.
const DefaultCreatedBy = "pqflow"

var codecs = map[string]compress.Compression{
	CompressionNone:   compress.Codecs.Uncompressed,
	CompressionSnappy: compress.Codecs.Snappy,
	CompressionGzip:   compress.Codecs.Gzip,
	CompressionZstd:   compress.Codecs.Zstd,
	CompressionBrotli: compress.Codecs.Brotli,
}

// CompressionName returns the configuration name of a codec.
func CompressionName(c compress.Compression) string {
	for name, codec := range codecs {
		if codec == c {
			return name
		}
	}
	return "unknown"
}

// WriterConfig configures Parquet file writers
type WriterConfig struct {
	Compression  string `yaml:"compression"`
	DataPageSize int64  `yaml:"data_page_size"`
	EnableStats  bool   `yaml:"enable_stats"`
	CreatedBy    string `yaml:"created_by"`
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Compression:  CompressionSnappy,
		DataPageSize: 1024 * 1024, // 1MB
		EnableStats:  true,
		CreatedBy:    DefaultCreatedBy,
	}
}

// Validate checks the compression name and page size.
func (c *WriterConfig) Validate() error {
	if _, ok := codecs[strings.ToLower(c.Compression)]; !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", c.Compression)
	}
	if c.DataPageSize < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "data page size must not be negative, got %d", c.DataPageSize)
	}
	return nil
}

func (c *WriterConfig) properties() (*parquet.WriterProperties, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	createdBy := c.CreatedBy
	if createdBy == "" {
		createdBy = DefaultCreatedBy
	}
	opts := []parquet.WriterProperty{
		parquet.WithCompression(codecs[strings.ToLower(c.Compression)]),
		parquet.WithStats(c.EnableStats),
		parquet.WithCreatedBy(createdBy),
	}
	if c.DataPageSize > 0 {
		opts = append(opts, parquet.WithDataPageSize(c.DataPageSize))
	}
	return parquet.NewWriterProperties(opts...), nil
}

// ReaderConfig configures row readers
type ReaderConfig struct {
	// BatchSize is the number of values decoded per column per read.
	BatchSize int `yaml:"batch_size"`
	// Columns projects the read onto the named columns, in the given order.
	// Empty reads every column.
	Columns []string `yaml:"columns"`
	// Limit stops the reader after this many rows. Zero or less is unlimited.
	Limit int64 `yaml:"limit"`
}

// DefaultReaderConfig returns default reader configuration
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		BatchSize: 4096,
	}
}

// Validate checks the batch size.
func (c *ReaderConfig) Validate() error {
	if c.BatchSize <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "reader batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}
