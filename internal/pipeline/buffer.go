package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/formats/columnar"
	"github.com/ajitpratap0/pqflow/pkg/logger"
	"github.com/ajitpratap0/pqflow/pkg/metrics"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/pool"
	"github.com/ajitpratap0/pqflow/pkg/schema"
)

// RowBuffer is the producer side of a write pipeline.
type RowBuffer struct {
	schema    *schema.Schema
	groupSize int
	batch     models.RowBatch
	queue     chan models.RowBatch
	batches   *pool.Pool[models.RowBatch]
	writer    *BatchWriter
	cancel    context.CancelFunc
	metrics   *metrics.Collector
	logger    *zap.Logger
	closed    bool
}

// NewRowBuffer validates cfg, rejecting schemas with unsupported column
// types, and starts the background writer. The writer runs until Close or
// until ctx is cancelled.
func NewRowBuffer(ctx context.Context, cfg Config) (*RowBuffer, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.WithContext(logger.ContextWithLocation(ctx, cfg.Location))
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger.With(
		zap.String("component", "row_buffer"),
		zap.String("pipeline", cfg.Name))
	cfg.Logger = cfg.Logger.With(zap.String("pipeline", cfg.Name))

	collector := metrics.NewCollector(cfg.Name)
	queue := make(chan models.RowBatch, cfg.QueueCapacity)
	groupSize := cfg.GroupSize
	batches := pool.New(
		func() models.RowBatch { return models.NewRowBatch(groupSize) },
		func(b models.RowBatch) { clear(b.Rows[:cap(b.Rows)]) },
	)
	writer := newBatchWriter(cfg, queue, batches, collector)

	wctx, cancel := context.WithCancel(ctx)
	go writer.run(wctx)

	log.Debug("row buffer started",
		zap.String("location", cfg.Location),
		zap.Int("group_size", cfg.GroupSize),
		zap.Int("queue_capacity", cfg.QueueCapacity))

	return &RowBuffer{
		schema:    cfg.Schema,
		groupSize: cfg.GroupSize,
		batch:     batches.Get(),
		queue:     queue,
		batches:   batches,
		writer:    writer,
		cancel:    cancel,
		metrics:   collector,
		logger:    log,
	}, nil
}

// Schema returns the schema rows are validated against.
func (b *RowBuffer) Schema() *schema.Schema { return b.schema }

// GroupSize returns the maximum number of rows per batch.
func (b *RowBuffer) GroupSize() int { return b.groupSize }

// Len returns the number of rows in the current batch.
func (b *RowBuffer) Len() int { return b.batch.Len() }

// RemainingCapacity returns how many rows fit before the batch is full.
func (b *RowBuffer) RemainingCapacity() int { return b.groupSize - b.batch.Len() }

// Done is closed when the background writer has terminated.
func (b *RowBuffer) Done() <-chan struct{} { return b.writer.Done() }

// AppendRow validates row and adds it to the current batch. A row that
// does not match the schema is rejected and the buffer is unchanged. When
// the batch reaches the group size it is flushed; if that flush fails the
// row stays buffered and the error is returned.
func (b *RowBuffer) AppendRow(ctx context.Context, row models.Row) error {
	if b.closed {
		return errors.New(errors.ErrorTypePipelineTerminated, "append to closed row buffer")
	}
	// A previous flush failed and left a full batch behind.
	if b.batch.Len() >= b.groupSize {
		if err := b.Flush(ctx); err != nil {
			return err
		}
	}
	if err := b.schema.ValidateRow(row); err != nil {
		return err
	}

	b.batch.Append(row)
	b.metrics.RecordAppend()
	if b.batch.Len() >= b.groupSize {
		return b.Flush(ctx)
	}
	return nil
}

// Flush hands the current batch to the writer and installs an empty one.
// It blocks while the queue is full and returns once the writer has the
// batch, not once it is durable. Flushing an empty batch does nothing.
//
// If ctx ends first the batch is kept and a cancelled error is returned.
// If the writer has stopped, Flush returns a pipeline_terminated error
// wrapping the writer's cause.
func (b *RowBuffer) Flush(ctx context.Context) error {
	if b.closed {
		return errors.New(errors.ErrorTypePipelineTerminated, "flush on closed row buffer")
	}
	select {
	case <-b.writer.Done():
		return b.terminated()
	default:
	}
	if b.batch.Len() == 0 {
		return nil
	}

	batch := b.batch
	b.batch = b.batches.Get()
	sent, err := b.handoff(ctx, batch)
	if !sent {
		b.batches.Put(b.batch)
		b.batch = batch
	}
	return err
}

// handoff sends batch to the writer and reports whether it was enqueued. A
// send can still fail: select does not prefer Done over a free slot, so the
// writer may have stopped after taking nothing.
func (b *RowBuffer) handoff(ctx context.Context, batch models.RowBatch) (bool, error) {
	start := time.Now()
	select {
	case b.queue <- batch:
		b.metrics.RecordFlush(time.Since(start))
		b.metrics.SetQueueDepth(len(b.queue))
		select {
		case <-b.writer.Done():
			return true, b.terminated()
		default:
			return true, nil
		}
	case <-b.writer.Done():
		return false, b.terminated()
	case <-ctx.Done():
		return false, errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "flush cancelled").
			WithDetail("rows", batch.Len())
	}
}

// Close flushes any partial batch, waits for the writer to finalize the
// file and returns the writer's error, if any. If ctx ends while waiting
// the writer is cancelled; it still finalizes the file before Close
// returns. Calling Close twice returns a pipeline_terminated error.
func (b *RowBuffer) Close(ctx context.Context) error {
	if b.closed {
		return errors.New(errors.ErrorTypePipelineTerminated, "row buffer already closed")
	}
	flushErr := b.Flush(ctx)
	b.closed = true
	close(b.queue)
	defer b.cancel()

	select {
	case <-b.writer.Done():
	case <-ctx.Done():
		b.cancel()
		<-b.writer.Done()
		return errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "close cancelled")
	}

	if err := b.writer.Err(); err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	b.logger.Debug("row buffer closed", zap.Int("row_groups", len(b.writer.summaries)))
	return nil
}

// Summaries returns the row groups written so far. It returns nil until the
// writer has terminated.
func (b *RowBuffer) Summaries() []*columnar.RowGroupSummary {
	select {
	case <-b.writer.Done():
		return b.writer.summaries
	default:
		return nil
	}
}

// RowsWritten returns the number of rows written. Valid after Close.
func (b *RowBuffer) RowsWritten() int64 {
	select {
	case <-b.writer.Done():
		return b.writer.rows
	default:
		return 0
	}
}

func (b *RowBuffer) terminated() error {
	if err := b.writer.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypePipelineTerminated, "background writer has stopped")
	}
	return errors.New(errors.ErrorTypePipelineTerminated, "background writer has stopped")
}
