package tle

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/orbital/passwatch/internal/metrics"
)

// Refresher polls the element-set feed on an hours-scale cadence, parses the
// response, and publishes the new dataset to the store and the optional
// OnUpdate hook. A failed refresh keeps the previous dataset in place.
type Refresher struct {
	fetcher *Fetcher
	store   *Store
	cache   *Cache
	maxAge  time.Duration
	logger  *slog.Logger

	// OnUpdate is invoked after each successful dataset replacement.
	OnUpdate func(*Dataset)
}

// NewRefresher creates a Refresher. maxAge is both the refresh interval and
// the dataset expiry horizon.
func NewRefresher(fetcher *Fetcher, store *Store, cache *Cache, maxAge time.Duration, logger *slog.Logger) *Refresher {
	if maxAge <= 0 {
		maxAge = 6 * time.Hour
	}
	return &Refresher{
		fetcher: fetcher,
		store:   store,
		cache:   cache,
		maxAge:  maxAge,
		logger:  logger,
	}
}

// LoadCached seeds the store from the disk cache if a fresh enough snapshot
// exists. Returns true when a dataset was loaded.
func (r *Refresher) LoadCached() bool {
	data, ts, err := r.cache.LoadLatest(r.maxAge)
	if err != nil {
		r.logger.Info("no usable element cache, starting without element data", "error", err)
		return false
	}

	sats, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil || len(sats) == 0 {
		r.logger.Warn("failed to parse cached element data", "error", err)
		return false
	}

	r.publish(&Dataset{
		Source:     "cache",
		FetchedAt:  ts,
		ExpiresAt:  ts.Add(r.maxAge),
		Satellites: sats,
	})
	r.logger.Info("loaded element data from cache", "count", len(sats), "cached_at", ts.UTC().Format(time.RFC3339))
	return true
}

// Run refreshes immediately if the store is empty or expired, then on every
// maxAge tick until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if ds := r.store.Get(); ds == nil || ds.Expired(time.Now()) {
		r.refresh(ctx)
	}

	ticker := time.NewTicker(r.maxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("element refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		r.logger.Warn("element feed fetch failed, keeping previous dataset", "error", err)
		return
	}

	sats, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		r.logger.Warn("element feed parse failed, keeping previous dataset", "error", err)
		return
	}
	if len(sats) == 0 {
		r.logger.Warn("element feed returned no valid groups, keeping previous dataset")
		return
	}

	now := time.Now()
	if err := r.cache.Write(data, now); err != nil {
		r.logger.Warn("element cache write failed", "error", err)
	}

	r.publish(&Dataset{
		Source:     r.fetcher.SourceURL(),
		FetchedAt:  now,
		ExpiresAt:  now.Add(r.maxAge),
		Satellites: sats,
	})
	r.logger.Info("element set refreshed", "count", len(sats), "expires_at", now.Add(r.maxAge).UTC().Format(time.RFC3339))
}

func (r *Refresher) publish(ds *Dataset) {
	r.store.Set(ds)
	metrics.SetElementSetCount(len(ds.Satellites))
	if r.OnUpdate != nil {
		r.OnUpdate(ds)
	}
}
