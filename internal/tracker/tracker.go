// Package tracker drives continuous re-propagation of a fixed satellite
// batch and publishes complete position snapshots to a registered handler.
//
// A Tracker moves through three states: idle, tracking, stopped. It takes
// ownership of its batch on Start, runs one synchronous full pass (so the
// consumer has a complete snapshot before the periodic phase begins), then
// re-propagates on every cadence tick. Stopping is deterministic: once Stop
// returns, no further publishes occur, and the instance cannot be restarted.
// A new element-set refresh builds a fresh Tracker instead of mutating a
// running one.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbital/passwatch/internal/metrics"
	"github.com/orbital/passwatch/internal/propagation"
)

var (
	// ErrAlreadyTracking is returned by Start on a tracker that is running.
	ErrAlreadyTracking = errors.New("tracker is already running")
	// ErrStopped is returned by Start on a stopped tracker; a fresh
	// instance is required for a new batch.
	ErrStopped = errors.New("tracker has been stopped")
)

// activeAltitudeKm is the floor below which a satellite is considered
// decaying rather than active.
const activeAltitudeKm = 100.0

// Source produces one complete propagation pass for an instant.
type Source interface {
	SampleBatch(ctx context.Context, at time.Time) ([]propagation.Sample, int, int)
	Size() int
}

// PublishFunc receives each complete snapshot. It is invoked from the
// tracker's own goroutine (and once synchronously from Start), so handlers
// must not block for long.
type PublishFunc func(*propagation.Snapshot)

type state int

const (
	stateIdle state = iota
	stateTracking
	stateStopped
)

// Tracker owns a batch of records and re-propagates it on a fixed cadence.
type Tracker struct {
	source   Source
	interval time.Duration
	publish  PublishFunc
	logger   *slog.Logger

	mu     sync.Mutex
	st     state
	cancel context.CancelFunc
	done   chan struct{}

	latest atomic.Pointer[propagation.Snapshot]
}

// New creates an idle tracker over the given source.
func New(source Source, interval time.Duration, publish PublishFunc, logger *slog.Logger) *Tracker {
	return &Tracker{
		source:   source,
		interval: interval,
		publish:  publish,
		logger:   logger,
	}
}

// Start runs one immediate full pass, publishes it synchronously, then
// begins the periodic phase. Returns ErrAlreadyTracking or ErrStopped when
// the tracker is not idle.
func (t *Tracker) Start() error {
	t.mu.Lock()
	switch t.st {
	case stateTracking:
		t.mu.Unlock()
		return ErrAlreadyTracking
	case stateStopped:
		t.mu.Unlock()
		return ErrStopped
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.st = stateTracking
	t.mu.Unlock()

	metrics.SetTrackedSatellites(t.source.Size())
	t.logger.Info("tracker starting", "satellites", t.source.Size(), "interval", t.interval.String())

	t.pass(ctx, time.Now())

	go t.loop(ctx)
	return nil
}

// Stop cancels the periodic loop and waits for any in-progress pass to
// finish. After Stop returns, the publish handler is never invoked again.
// Stop is idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.st != stateTracking {
		t.st = stateStopped
		t.mu.Unlock()
		return
	}
	t.st = stateStopped
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	cancel()
	<-done
	t.logger.Info("tracker stopped")
}

// Latest returns the most recent complete snapshot, or nil before the first
// pass. Snapshots are replaced atomically; a reader never observes a
// half-updated batch.
func (t *Tracker) Latest() *propagation.Snapshot {
	return t.latest.Load()
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			// A stop signalled during the timer wait wins over the tick.
			select {
			case <-ctx.Done():
				return
			default:
			}
			t.pass(ctx, now)
		}
	}
}

// pass runs one complete propagation pass and publishes the result.
// Failing records are omitted for this tick only; they may reappear on a
// later tick if the transient condition clears.
func (t *Tracker) pass(ctx context.Context, at time.Time) {
	samples, _, errorCount := t.source.SampleBatch(ctx, at)
	if ctx.Err() != nil {
		// A cancelled pass may be incomplete; never publish it.
		return
	}

	snap := &propagation.Snapshot{At: at, Samples: samples}
	t.latest.Store(snap)

	var active int
	for _, s := range samples {
		if s.Altitude > activeAltitudeKm {
			active++
		}
	}
	metrics.SetActiveSatellites(active)
	metrics.IncTrackerSnapshots()

	if errorCount > 0 {
		t.logger.Debug("propagation pass had failures", "failed", errorCount, "published", len(samples))
	}

	t.publish(snap)
}
