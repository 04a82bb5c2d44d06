// Package pool provides typed object pooling for pqflow.
//
// It wraps sync.Pool with type safety, an optional reset hook and
// statistics, so that hot paths such as row batch allocation can recycle
// memory between row groups.
//
// Example usage:
//
//	batches := pool.New(
//	    func() models.RowBatch { return models.NewRowBatch(groupSize) },
//	    func(b models.RowBatch) { clear(b.Rows[:cap(b.Rows)]) },
//	)
//	b := batches.Get()
//	// fill and consume b
//	batches.Put(b.Reset())
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and automatic reset
// functionality. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated atomic.Int64
		inUse     atomic.Int64
		gets      atomic.Int64
	}
}

// Stats is a snapshot of pool usage.
type Stats struct {
	// Allocated is the number of objects created by the factory
	Allocated int64
	// InUse is the number of objects checked out and not yet returned
	InUse int64
	// Hits is the number of Get calls served by a recycled object
	Hits int64
	// Misses is the number of Get calls that had to allocate
	Misses int64
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty. The reset function,
// if not nil, is called before an object goes back into the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		p.stats.allocated.Add(1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	p.stats.gets.Add(1)
	p.stats.inUse.Add(1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.stats.inUse.Add(-1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() Stats {
	allocated := p.stats.allocated.Load()
	gets := p.stats.gets.Load()
	hits := gets - allocated
	if hits < 0 {
		hits = 0
	}
	return Stats{
		Allocated: allocated,
		InUse:     p.stats.inUse.Load(),
		Hits:      hits,
		Misses:    gets - hits,
	}
}
