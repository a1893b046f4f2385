package propagation

import (
	"context"
	"time"
)

// Batch binds an immutable set of records to a worker pool, producing one
// complete pass per call. It is what the live tracker owns and drives.
type Batch struct {
	records []*Record
	pool    *Pool
}

// NewBatch creates a Batch over the given records.
func NewBatch(records []*Record, pool *Pool) *Batch {
	return &Batch{records: records, pool: pool}
}

// SampleBatch propagates all records to the target instant.
func (b *Batch) SampleBatch(ctx context.Context, at time.Time) ([]Sample, int, int) {
	return b.pool.SampleBatch(ctx, b.records, at)
}

// Size returns the number of records in the batch.
func (b *Batch) Size() int {
	return len(b.records)
}
