package merge

import (
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pqflow/internal/pipeline"
	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/formats/columnar"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/schema"
	"github.com/ajitpratap0/pqflow/pkg/sink"
	"github.com/ajitpratap0/pqflow/pkg/testutil"
)

var keyed = schema.MustNew("keyed",
	schema.Int64Field("key", true),
	schema.UTF8Field("origin", true),
)

func keyedRow(key int64, origin string) models.Row {
	return models.NewRow(
		models.Field("key", models.Int64(key)),
		models.Field("origin", models.UTF8(origin)),
	)
}

type sliceSource struct {
	rows []models.Row
	err  error
}

func (s *sliceSource) Next() (models.Row, error) {
	if len(s.rows) == 0 {
		if s.err != nil {
			return models.Row{}, s.err
		}
		return models.Row{}, io.EOF
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

func source(origin string, keys ...int64) *sliceSource {
	s := &sliceSource{}
	for _, k := range keys {
		s.rows = append(s.rows, keyedRow(k, origin))
	}
	return s
}

type collectSink struct {
	rows []models.Row
	err  error
}

func (c *collectSink) AppendRow(_ context.Context, r models.Row) error {
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, r)
	return nil
}

func (c *collectSink) keys(t *testing.T) []int64 {
	out := make([]int64, len(c.rows))
	for i, r := range c.rows {
		k, err := r.Int64(0)
		require.NoError(t, err)
		out[i] = k
	}
	return out
}

func (c *collectSink) origins(t *testing.T) []string {
	out := make([]string, len(c.rows))
	for i, r := range c.rows {
		o, err := r.Text(1)
		require.NoError(t, err)
		out[i] = o
	}
	return out
}

func TestRows(t *testing.T) {
	tests := []struct {
		name    string
		sources []RowSource
		want    []int64
	}{
		{
			name:    "two interleaved",
			sources: []RowSource{source("a", 1, 3, 5), source("b", 2, 4, 6)},
			want:    []int64{1, 2, 3, 4, 5, 6},
		},
		{
			name:    "one empty source",
			sources: []RowSource{source("a", 1, 2, 3), source("b")},
			want:    []int64{1, 2, 3},
		},
		{
			name:    "single source",
			sources: []RowSource{source("a", 4, 8, 15, 16)},
			want:    []int64{4, 8, 15, 16},
		},
		{
			name:    "all empty",
			sources: []RowSource{source("a"), source("b")},
			want:    []int64{},
		},
		{
			name:    "disjoint ranges",
			sources: []RowSource{source("a", 7, 8, 9), source("b", 1, 2), source("c", 4)},
			want:    []int64{1, 2, 4, 7, 8, 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &collectSink{}
			n, err := Rows(testutil.TestContext(t), tt.sources, out, ByColumn(0))
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
			assert.Equal(t, tt.want, out.keys(t))
		})
	}
}

func TestRowsTiesFollowSourceOrder(t *testing.T) {
	out := &collectSink{}
	sources := []RowSource{
		source("a", 1, 2, 2, 5),
		source("b", 2, 3, 5),
		source("c", 1, 2, 5),
	}
	_, err := Rows(testutil.TestContext(t), sources, out, ByColumn(0))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 1, 2, 2, 2, 2, 3, 5, 5, 5}, out.keys(t))
	assert.Equal(t, []string{"a", "c", "a", "a", "b", "c", "b", "a", "b", "c"}, out.origins(t))
}

func TestRowsErrors(t *testing.T) {
	ctx := testutil.TestContext(t)

	_, err := Rows(ctx, []RowSource{source("a", 1)}, &collectSink{}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	broken := &sliceSource{rows: []models.Row{keyedRow(1, "a")}, err: stderrors.New("corrupt page")}
	out := &collectSink{}
	n, err := Rows(ctx, []RowSource{broken, source("b", 2)}, out, ByColumn(0))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
	assert.Equal(t, int64(1), n)

	sinkErr := errors.New(errors.ErrorTypePipelineTerminated, "writer stopped")
	_, err = Rows(ctx, []RowSource{source("a", 1)}, &collectSink{err: sinkErr}, ByColumn(0))
	assert.True(t, errors.IsType(err, errors.ErrorTypePipelineTerminated))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Rows(cancelled, []RowSource{source("a", 1)}, &collectSink{}, ByColumn(0))
	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))
}

func writeSorted(t *testing.T, r *sink.Resolver, location string, sch *schema.Schema, rows ...models.Row) {
	t.Helper()
	ctx := testutil.TestContext(t)
	rb, err := pipeline.NewRowBuffer(ctx, pipeline.Config{
		Schema:    sch,
		Location:  location,
		GroupSize: 2,
		Resolver:  r,
		Logger:    testutil.TestLogger(t),
	})
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, rb.AppendRow(ctx, row))
	}
	require.NoError(t, rb.Close(ctx))
}

func TestFiles(t *testing.T) {
	ctx := testutil.TestContext(t)
	r := sink.NewResolver()
	writeSorted(t, r, "mem:a", keyed, keyedRow(1, "a"), keyedRow(3, "a"), keyedRow(5, "a"))
	writeSorted(t, r, "mem:b", keyed, keyedRow(2, "b"), keyedRow(4, "b"), keyedRow(6, "b"))
	writeSorted(t, r, "mem:c", keyed, keyedRow(3, "c"))

	res, err := Files(ctx, r, []string{"mem:a", "mem:b", "mem:c"}, "mem:out", ByColumn(0), Options{
		GroupSize:     4,
		ReadBatchSize: 2,
		Logger:        testutil.TestLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sources)
	assert.Equal(t, int64(7), res.Rows)
	assert.Equal(t, 2, res.RowGroups)
	assert.True(t, res.Schema.Equal(keyed))

	rr, err := columnar.OpenRowReader(ctx, r, "mem:out", nil)
	require.NoError(t, err)
	defer rr.Close()
	out := &collectSink{}
	for {
		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out.rows = append(out.rows, row)
	}
	assert.Equal(t, []int64{1, 2, 3, 3, 4, 5, 6}, out.keys(t))
	assert.Equal(t, []string{"a", "b", "a", "c", "b", "a", "b"}, out.origins(t))
}

func TestFilesOpenFailure(t *testing.T) {
	ctx := testutil.TestContext(t)
	r := sink.NewResolver()
	writeSorted(t, r, "mem:a", keyed, keyedRow(1, "a"))

	_, err := Files(ctx, r, []string{"mem:a", "mem:missing"}, "mem:out", ByColumn(0), Options{Logger: testutil.TestLogger(t)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
	_, ok := r.Memory().Bytes("out")
	assert.False(t, ok, "no output is written when a source cannot be opened")
}

func TestFilesSchemaMismatch(t *testing.T) {
	ctx := testutil.TestContext(t)
	r := sink.NewResolver()
	other := schema.MustNew("other", schema.Int64Field("key", true))
	writeSorted(t, r, "mem:a", keyed, keyedRow(1, "a"))
	writeSorted(t, r, "mem:b", other, models.NewRow(models.Field("key", models.Int64(2))))

	_, err := Files(ctx, r, []string{"mem:a", "mem:b"}, "mem:out", ByColumn(0), Options{Logger: testutil.TestLogger(t)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))
	assert.Contains(t, err.Error(), "mem:b")
}

func TestFilesNoSources(t *testing.T) {
	_, err := Files(testutil.TestContext(t), sink.NewResolver(), nil, "mem:out", ByColumn(0), Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
