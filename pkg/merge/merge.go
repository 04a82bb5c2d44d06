// Package merge combines pre-sorted row streams into one sorted stream.
//
// Rows is the core k-way merge over any RowSource; Files applies it to
// Parquet files and writes the result through a RowBuffer, so the output's
// row groups are bounded by the configured group size.
//
// Output is sorted only if every input is sorted under the same Less. Ties
// are broken by source order: when rows compare equal, the row from the
// earlier source is emitted first.
package merge

import (
	"container/heap"
	"context"
	"io"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/models"
)

// Less reports whether a sorts before b.
type Less func(a, b models.Row) bool

// ByColumn orders rows ascending on column i using models.Compare.
func ByColumn(i int) Less {
	return func(a, b models.Row) bool {
		return models.Compare(a.Get(i), b.Get(i)) < 0
	}
}

// RowSource yields rows in order and io.EOF when exhausted.
type RowSource interface {
	Next() (models.Row, error)
}

// RowSink receives merged rows.
type RowSink interface {
	AppendRow(ctx context.Context, row models.Row) error
}

// cursor holds the current unconsumed row of one source.
type cursor struct {
	src   RowSource
	index int
	row   models.Row
}

// advance loads the next row and reports whether one was available.
func (c *cursor) advance() (bool, error) {
	row, err := c.src.Next()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeIO, "failed to read merge source").
			WithDetail("source", c.index)
	}
	c.row = row
	return true, nil
}

type cursorHeap struct {
	cursors []*cursor
	less    Less
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	if h.less(a.row, b.row) {
		return true
	}
	if h.less(b.row, a.row) {
		return false
	}
	return a.index < b.index
}

func (h *cursorHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *cursorHeap) Push(x any) { h.cursors = append(h.cursors, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := h.cursors
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	h.cursors = old[:n-1]
	return c
}

// Rows merges sources into out and returns the number of rows emitted.
// Each source is read one row ahead; exhausted sources are dropped.
func Rows(ctx context.Context, sources []RowSource, out RowSink, less Less) (int64, error) {
	if less == nil {
		return 0, errors.New(errors.ErrorTypeConfig, "merge comparator is required")
	}

	h := &cursorHeap{cursors: make([]*cursor, 0, len(sources)), less: less}
	for i, src := range sources {
		c := &cursor{src: src, index: i}
		ok, err := c.advance()
		if err != nil {
			return 0, err
		}
		if ok {
			h.cursors = append(h.cursors, c)
		}
	}
	heap.Init(h)

	var emitted int64
	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return emitted, errors.Wrap(err, errors.ErrorTypeCancelled, "merge cancelled").
				WithDetail("rows", emitted)
		}

		c := h.cursors[0]
		if err := out.AppendRow(ctx, c.row); err != nil {
			return emitted, err
		}
		emitted++

		ok, err := c.advance()
		if err != nil {
			return emitted, err
		}
		if ok {
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
	return emitted, nil
}
