// Package metrics provides Prometheus metrics for pqflow pipelines and
// merges.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("events")
//	collector.RecordAppend()
//
//	timer := metrics.NewTimer("encode")
//	writeRowGroup(rows)
//	collector.RecordRowGroup(metrics.StatusSuccess, len(rows), timer.Stop())
//
// Metrics are registered with the default registry on package load and can
// be exposed with promhttp.Handler().
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row group outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// RowsAppended counts rows accepted by a RowBuffer.
	// Labels: pipeline
	RowsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pqflow_rows_appended_total",
			Help: "Total number of rows appended to row buffers",
		},
		[]string{"pipeline"},
	)

	// BatchesFlushed counts batches handed off to the background writer.
	BatchesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pqflow_batches_flushed_total",
			Help: "Total number of batches handed off to the writer",
		},
		[]string{"pipeline"},
	)

	// RowGroupsWritten counts row groups by outcome.
	// Labels: pipeline, status (success/failure)
	RowGroupsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pqflow_row_groups_written_total",
			Help: "Total number of row groups written",
		},
		[]string{"pipeline", "status"},
	)

	// RowsWritten counts rows in successfully written row groups.
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pqflow_rows_written_total",
			Help: "Total number of rows written to parquet files",
		},
		[]string{"pipeline"},
	)

	// FlushWait tracks how long a flush waited for queue space, in seconds.
	FlushWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pqflow_flush_wait_seconds",
			Help: "Time a flush blocked waiting for the handoff queue",
			Buckets: []float64{
				1e-6, // 1μs - queue had room
				1e-5,
				1e-4,
				1e-3, // 1ms
				1e-2,
				1e-1,
				1, // 1s - writer is the bottleneck
				10,
			},
		},
		[]string{"pipeline"},
	)

	// EncodeLatency tracks the time to encode and write one row group.
	EncodeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pqflow_row_group_encode_seconds",
			Help:    "Time to transpose, encode and write one row group",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
		},
		[]string{"pipeline"},
	)

	// QueueDepth is the number of batches waiting for the writer.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pqflow_queue_depth",
			Help: "Batches queued for the background writer",
		},
		[]string{"pipeline"},
	)

	// MergeRows counts rows emitted by sorted merges.
	MergeRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pqflow_merge_rows_total",
			Help: "Total number of rows emitted by sorted file merges",
		},
	)

	// MergeSources counts sources opened by sorted merges.
	MergeSources = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pqflow_merge_sources_total",
			Help: "Total number of sources opened by sorted file merges",
		},
	)
)

// Collector binds the pipeline metrics to one pipeline name.
type Collector struct {
	name           string
	rowsAppended   prometheus.Counter
	batchesFlushed prometheus.Counter
	rowGroupsOK    prometheus.Counter
	rowGroupsFail  prometheus.Counter
	rowsWritten    prometheus.Counter
	flushWait      prometheus.Observer
	encodeLatency  prometheus.Observer
	queueDepth     prometheus.Gauge
	startTime      time.Time
}

// NewCollector creates a collector for the named pipeline.
func NewCollector(name string) *Collector {
	return &Collector{
		name:           name,
		rowsAppended:   RowsAppended.WithLabelValues(name),
		batchesFlushed: BatchesFlushed.WithLabelValues(name),
		rowGroupsOK:    RowGroupsWritten.WithLabelValues(name, StatusSuccess),
		rowGroupsFail:  RowGroupsWritten.WithLabelValues(name, StatusFailure),
		rowsWritten:    RowsWritten.WithLabelValues(name),
		flushWait:      FlushWait.WithLabelValues(name),
		encodeLatency:  EncodeLatency.WithLabelValues(name),
		queueDepth:     QueueDepth.WithLabelValues(name),
		startTime:      time.Now(),
	}
}

// Name returns the pipeline name.
func (c *Collector) Name() string { return c.name }

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time { return c.startTime }

// RecordAppend counts one appended row.
func (c *Collector) RecordAppend() {
	c.rowsAppended.Inc()
}

// RecordFlush counts a handoff and how long it waited.
func (c *Collector) RecordFlush(wait time.Duration) {
	c.batchesFlushed.Inc()
	c.flushWait.Observe(wait.Seconds())
}

// RecordRowGroup records the outcome of writing one row group.
func (c *Collector) RecordRowGroup(status string, rows int, d time.Duration) {
	if status != StatusSuccess {
		c.rowGroupsFail.Inc()
		return
	}
	c.rowGroupsOK.Inc()
	c.rowsWritten.Add(float64(rows))
	c.encodeLatency.Observe(d.Seconds())
}

// SetQueueDepth sets the current queue depth.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
