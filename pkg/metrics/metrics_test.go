package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector("metrics_test")
	assert.Equal(t, "metrics_test", c.Name())

	c.RecordAppend()
	c.RecordAppend()
	c.RecordFlush(time.Millisecond)
	c.RecordRowGroup(StatusSuccess, 2, 5*time.Millisecond)
	c.RecordRowGroup(StatusFailure, 3, time.Millisecond)
	c.SetQueueDepth(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(RowsAppended.WithLabelValues("metrics_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(BatchesFlushed.WithLabelValues("metrics_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RowGroupsWritten.WithLabelValues("metrics_test", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(RowGroupsWritten.WithLabelValues("metrics_test", StatusFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(RowsWritten.WithLabelValues("metrics_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(QueueDepth.WithLabelValues("metrics_test")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("sleep")
	time.Sleep(2 * time.Millisecond)
	first := timer.Stop()
	assert.GreaterOrEqual(t, first, 2*time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), first)
	assert.Equal(t, "sleep", timer.Name())
}
