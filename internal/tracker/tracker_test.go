package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/orbital/passwatch/internal/propagation"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// fakeSource produces one canned sample per pass and counts invocations.
type fakeSource struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSource) SampleBatch(ctx context.Context, at time.Time) ([]propagation.Sample, int, int) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return []propagation.Sample{{NORADID: 25544, Name: "ISS (ZARYA)", Altitude: 420, At: at}}, 1, 0
}

func (f *fakeSource) Size() int { return 1 }

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// collector records published snapshots.
type collector struct {
	mu    sync.Mutex
	snaps []*propagation.Snapshot
}

func (c *collector) publish(s *propagation.Snapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, s)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

// TestStartPublishesSynchronously verifies the first full pass completes and
// is published before Start returns.
func TestStartPublishesSynchronously(t *testing.T) {
	src := &fakeSource{}
	col := &collector{}
	tr := New(src, time.Hour, col.publish, testLogger)
	defer tr.Stop()

	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if col.count() != 1 {
		t.Fatalf("expected 1 snapshot published synchronously, got %d", col.count())
	}
	snap := tr.Latest()
	if snap == nil {
		t.Fatal("Latest() = nil after Start")
	}
	if len(snap.Samples) != 1 || snap.Samples[0].NORADID != 25544 {
		t.Errorf("unexpected snapshot contents: %+v", snap.Samples)
	}
}

// TestPeriodicPasses verifies the tracker keeps publishing on its cadence.
func TestPeriodicPasses(t *testing.T) {
	src := &fakeSource{}
	col := &collector{}
	tr := New(src, 10*time.Millisecond, col.publish, testLogger)
	defer tr.Stop()

	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for col.count() < 4 {
		select {
		case <-deadline:
			t.Fatalf("only %d snapshots after 2s", col.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestStartTwice verifies a running tracker rejects a second Start.
func TestStartTwice(t *testing.T) {
	tr := New(&fakeSource{}, time.Hour, func(*propagation.Snapshot) {}, testLogger)
	defer tr.Stop()

	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tr.Start(); !errors.Is(err, ErrAlreadyTracking) {
		t.Fatalf("second Start = %v, want ErrAlreadyTracking", err)
	}
}

// TestStopHaltsPublishing verifies that after Stop returns, the publish
// handler is never invoked again, even across several cadence intervals.
func TestStopHaltsPublishing(t *testing.T) {
	src := &fakeSource{}
	col := &collector{}
	tr := New(src, 5*time.Millisecond, col.publish, testLogger)

	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	tr.Stop()

	published := col.count()
	time.Sleep(50 * time.Millisecond)
	if col.count() != published {
		t.Fatalf("publishes after Stop: %d -> %d", published, col.count())
	}
}

// TestStopIsIdempotent verifies repeated Stop calls are safe.
func TestStopIsIdempotent(t *testing.T) {
	tr := New(&fakeSource{}, time.Hour, func(*propagation.Snapshot) {}, testLogger)
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tr.Stop()
	tr.Stop()
}

// TestNoRestartAfterStop verifies a stopped tracker cannot be restarted; a
// new batch requires a new instance.
func TestNoRestartAfterStop(t *testing.T) {
	tr := New(&fakeSource{}, time.Hour, func(*propagation.Snapshot) {}, testLogger)
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tr.Stop()

	if err := tr.Start(); !errors.Is(err, ErrStopped) {
		t.Fatalf("Start after Stop = %v, want ErrStopped", err)
	}
}

// TestStopBeforeStart verifies stopping an idle tracker marks it stopped.
func TestStopBeforeStart(t *testing.T) {
	tr := New(&fakeSource{}, time.Hour, func(*propagation.Snapshot) {}, testLogger)
	tr.Stop()

	if err := tr.Start(); !errors.Is(err, ErrStopped) {
		t.Fatalf("Start after idle Stop = %v, want ErrStopped", err)
	}
}

// TestLatestBeforeStart verifies Latest is nil before any pass.
func TestLatestBeforeStart(t *testing.T) {
	tr := New(&fakeSource{}, time.Hour, func(*propagation.Snapshot) {}, testLogger)
	if tr.Latest() != nil {
		t.Fatal("Latest() != nil before Start")
	}
}
