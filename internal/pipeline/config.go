// Package pipeline turns a stream of rows into a Parquet file.
//
// # Overview
//
// A RowBuffer accumulates rows from a single producer into batches of at
// most GroupSize rows. Each full batch is handed through a bounded queue to
// a BatchWriter goroutine, which encodes it as exactly one row group. The
// queue holds QueueCapacity batches, so at most QueueCapacity+1 batches are
// in memory at once and a slow sink blocks the producer in Flush.
//
// # Basic Usage
//
//	rb, err := pipeline.NewRowBuffer(ctx, pipeline.Config{
//	    Schema:    sch,
//	    Location:  "s3:bucket/events.parquet",
//	    GroupSize: 10000,
//	    Resolver:  sink.NewResolver(),
//	})
//	if err != nil {
//	    return err
//	}
//	for _, row := range rows {
//	    if err := rb.AppendRow(ctx, row); err != nil {
//	        return err
//	    }
//	}
//	return rb.Close(ctx)
//
// A RowBuffer is not safe for concurrent use.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/formats/columnar"
	"github.com/ajitpratap0/pqflow/pkg/schema"
	"github.com/ajitpratap0/pqflow/pkg/sink"
)

const (
	// DefaultGroupSize is the default number of rows per row group.
	DefaultGroupSize = 10000
	// DefaultQueueCapacity is the default number of batches that may wait
	// for the writer.
	DefaultQueueCapacity = 2
	// DefaultName labels metrics and logs when Config.Name is empty.
	DefaultName = "default"
)

// Config contains write pipeline configuration
type Config struct {
	Name          string                 // Labels metrics, logs and spans
	Schema        *schema.Schema         // Required
	Location      string                 // Sink location, see package sink
	GroupSize     int                    // Rows per row group
	QueueCapacity int                    // Batches queued for the writer
	Resolver      *sink.Resolver         // Defaults to a fresh resolver
	Writer        *columnar.WriterConfig // Parquet writer properties
	Logger        *zap.Logger
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.GroupSize == 0 {
		c.GroupSize = DefaultGroupSize
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.Resolver == nil {
		c.Resolver = sink.NewResolver(sink.WithLogger(c.Logger))
	}
	if c.Writer == nil {
		c.Writer = columnar.DefaultWriterConfig()
	}
}

func (c *Config) validate() error {
	if c.Schema == nil {
		return errors.New(errors.ErrorTypeConfig, "pipeline schema is required")
	}
	if c.Location == "" {
		return errors.New(errors.ErrorTypeConfig, "pipeline location is required")
	}
	if c.GroupSize < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "group size must be at least 1, got %d", c.GroupSize)
	}
	if c.QueueCapacity < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "queue capacity must be at least 1, got %d", c.QueueCapacity)
	}
	if err := c.Writer.Validate(); err != nil {
		return err
	}
	return columnar.ValidateSchema(c.Schema)
}
