package models

// RowBatch is an ordered, capacity-bounded run of rows destined for one row
// group. A batch has a single owner at a time: the producer fills it, hands
// it off, and must not touch it again.
type RowBatch struct {
	Rows []Row
}

// NewRowBatch creates an empty batch with room for capacity rows.
func NewRowBatch(capacity int) RowBatch {
	return RowBatch{Rows: make([]Row, 0, capacity)}
}

// Append adds a row to the batch.
func (b *RowBatch) Append(r Row) {
	b.Rows = append(b.Rows, r)
}

// Len returns the number of rows in the batch.
func (b *RowBatch) Len() int {
	return len(b.Rows)
}

// Reset returns an empty batch backed by the same storage.
func (b RowBatch) Reset() RowBatch {
	return RowBatch{Rows: b.Rows[:0]}
}
