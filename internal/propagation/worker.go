package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orbital/passwatch/internal/metrics"
	"github.com/orbital/passwatch/internal/transform"
)

// sampleJob is a unit of work for the worker pool.
type sampleJob struct {
	record *Record
	at     time.Time
	gmst   float64
}

type sampleResult struct {
	sample  Sample
	err     error
	noradID int
}

// Pool runs batch propagation passes across a fixed number of goroutines.
// Propagation is pure CPU work, so the pool is typically sized to NumCPU.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, logger: logger}
}

// SampleBatch propagates every record to the target instant. Failing records
// are logged and omitted from the result; the pass itself never fails.
// Returns the samples plus success and error counts.
func (p *Pool) SampleBatch(ctx context.Context, records []*Record, at time.Time) ([]Sample, int, int) {
	if len(records) == 0 {
		return nil, 0, 0
	}

	start := time.Now()

	// GMST is identical for every record at a given instant.
	gmst := transform.GMST(at)

	jobs := make(chan sampleJob, p.workers*2)
	results := make(chan sampleResult, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				s, err := job.record.sampleAt(job.at, job.gmst)
				res := sampleResult{sample: s, err: err, noradID: job.record.NORADID}
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, rec := range records {
			select {
			case jobs <- sampleJob{record: rec, at: at, gmst: gmst}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	samples := make([]Sample, 0, len(records))
	var successCount, errorCount int
	for res := range results {
		if res.err != nil {
			errorCount++
			p.logger.Warn("propagation failed", "catalog", res.noradID, "error", res.err)
			continue
		}
		successCount++
		samples = append(samples, res.sample)
	}

	metrics.RecordPropagation(time.Since(start), successCount, errorCount)
	return samples, successCount, errorCount
}
