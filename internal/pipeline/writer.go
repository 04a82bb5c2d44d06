package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/formats/columnar"
	"github.com/ajitpratap0/pqflow/pkg/metrics"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/observability"
	"github.com/ajitpratap0/pqflow/pkg/pool"
	"github.com/ajitpratap0/pqflow/pkg/schema"
	"github.com/ajitpratap0/pqflow/pkg/sink"
)

// BatchWriter is the background consumer of a RowBuffer. It owns the sink
// and the Parquet file writer for its whole lifetime.
type BatchWriter struct {
	name      string
	location  string
	schema    *schema.Schema
	resolver  *sink.Resolver
	writerCfg *columnar.WriterConfig
	queue     <-chan models.RowBatch
	batches   *pool.Pool[models.RowBatch]
	logger    *zap.Logger
	metrics   *metrics.Collector

	done chan struct{}

	// Written by run, read only after done is closed.
	err       error
	summaries []*columnar.RowGroupSummary
	rows      int64
}

func newBatchWriter(cfg Config, queue <-chan models.RowBatch, batches *pool.Pool[models.RowBatch], collector *metrics.Collector) *BatchWriter {
	return &BatchWriter{
		name:      cfg.Name,
		location:  cfg.Location,
		schema:    cfg.Schema,
		resolver:  cfg.Resolver,
		writerCfg: cfg.Writer,
		queue:     queue,
		batches:   batches,
		logger:    cfg.Logger.With(zap.String("component", "batch_writer")),
		metrics:   collector,
		done:      make(chan struct{}),
	}
}

// Done is closed when the writer has terminated.
func (w *BatchWriter) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that stopped the writer. Only valid after Done.
func (w *BatchWriter) Err() error {
	return w.err
}

func (w *BatchWriter) run(ctx context.Context) {
	defer close(w.done)

	out, err := w.resolver.Create(ctx, w.location)
	if err != nil {
		w.stop(nil, err)
		return
	}
	fw, err := columnar.NewFileWriter(out, w.schema, w.writerCfg)
	if err != nil {
		out.Close()
		w.stop(nil, err)
		return
	}
	w.logger.Info("sink opened", zap.String("location", w.location))

	for {
		if err := ctx.Err(); err != nil {
			w.stop(fw, errors.Wrap(err, errors.ErrorTypeCancelled, "writer cancelled"))
			return
		}
		select {
		case <-ctx.Done():
			w.stop(fw, errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "writer cancelled"))
			return
		case batch, ok := <-w.queue:
			if !ok {
				w.stop(fw, nil)
				return
			}
			w.metrics.SetQueueDepth(len(w.queue))
			err := w.writeRowGroup(ctx, fw, batch)
			w.batches.Put(batch.Reset())
			if err != nil {
				w.stop(fw, err)
				return
			}
		}
	}
}

func (w *BatchWriter) writeRowGroup(ctx context.Context, fw *columnar.FileWriter, batch models.RowBatch) error {
	return observability.Trace(ctx, "pipeline.write_row_group", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("pipeline", w.name)
		span.SetAttribute("rows", batch.Len())
		span.SetAttribute("row_group", fw.RowGroups())

		timer := metrics.NewTimer("write_row_group")
		summary, err := fw.WriteRowGroup(batch.Rows)
		elapsed := timer.Stop()
		if err != nil {
			w.metrics.RecordRowGroup(metrics.StatusFailure, batch.Len(), elapsed)
			return err
		}
		w.metrics.RecordRowGroup(metrics.StatusSuccess, batch.Len(), elapsed)
		w.summaries = append(w.summaries, summary)
		w.rows += summary.Rows

		w.logger.Debug("row group written",
			zap.Int("row_group", summary.Index),
			zap.Int64("rows", summary.Rows),
			zap.Duration("duration", elapsed))
		return nil
	})
}

// stop finalizes the file, if one was opened, and records the first error.
// Row groups written before a failure stay readable.
func (w *BatchWriter) stop(fw *columnar.FileWriter, cause error) {
	if fw != nil {
		if err := fw.Close(); err != nil && cause == nil {
			cause = err
		}
	}
	w.err = cause
	if cause != nil {
		w.logger.Error("writer stopped",
			zap.String("location", w.location),
			zap.Int("row_groups", len(w.summaries)),
			zap.Error(cause))
		return
	}
	w.logger.Info("writer finished",
		zap.String("location", w.location),
		zap.Int("row_groups", len(w.summaries)),
		zap.Int64("rows", w.rows))
}
