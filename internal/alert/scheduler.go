package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orbital/passwatch/internal/metrics"
	"github.com/orbital/passwatch/internal/passes"
)

// DefaultDedupWindow is the proximity tolerance for treating two candidate
// passes as the same event. Like the lead-time band, it is hand-picked
// policy carried over as configuration.
const DefaultDedupWindow = 30 * time.Minute

// Config holds scheduler settings.
type Config struct {
	// SatelliteIDs is the fixed set of catalog numbers checked for every
	// subscriber.
	SatelliteIDs []int

	// Provider query parameters.
	HorizonDays   int // prediction horizon handed to the provider
	MinVisibility int // seconds a pass must be visible to count

	DedupWindow time.Duration // ± tolerance around a pass start
	CallTimeout time.Duration // bound on each provider/transport call
	Concurrency int           // subscribers evaluated in parallel
}

func (c Config) withDefaults() Config {
	if c.HorizonDays <= 0 {
		c.HorizonDays = 1
	}
	if c.MinVisibility <= 0 {
		c.MinVisibility = 300
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = DefaultDedupWindow
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 20 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Report summarizes one scheduling cycle. A cycle that could not even list
// subscribers returns an error instead; partial per-subscriber failures are
// counted here and never abort the cycle.
type Report struct {
	Subscribers int
	Notified    int
	Deduped     int
	Failed      int
}

// Scheduler runs the dedup'd notification loop over all active subscribers.
// All collaborators are injected; the scheduler owns no global state.
type Scheduler struct {
	cfg       Config
	subs      SubscriberSource
	log       NotificationLog
	provider  PassProvider
	transport Transport
	eval      passes.Evaluator
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg Config, subs SubscriberSource, log NotificationLog, provider PassProvider, transport Transport, eval passes.Evaluator, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		subs:      subs,
		log:       log,
		provider:  provider,
		transport: transport,
		eval:      eval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes RunCycle immediately and then on every interval tick until
// ctx is cancelled. No single cycle's failure stops the loop.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	s.cycleAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("alert scheduler stopped")
			return
		case <-ticker.C:
			s.cycleAndLog(ctx)
		}
	}
}

func (s *Scheduler) cycleAndLog(ctx context.Context) {
	report, err := s.RunCycle(ctx)
	if err != nil {
		s.logger.Error("scheduling cycle failed", "error", err)
		return
	}
	s.logger.Info("scheduling cycle complete",
		"subscribers", report.Subscribers,
		"notified", report.Notified,
		"deduped", report.Deduped,
		"failed", report.Failed,
	)
}

// RunCycle evaluates every active subscriber once. The subscriber list is
// snapshotted at cycle start. Subscribers are fanned out across a bounded
// number of goroutines; an error in one subscriber is logged and isolated.
func (s *Scheduler) RunCycle(ctx context.Context) (Report, error) {
	start := time.Now()

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	subscribers, err := s.subs.ListActive(listCtx)
	cancel()
	if err != nil {
		return Report{}, fmt.Errorf("listing active subscribers: %w", err)
	}

	metrics.SetSubscribersActive(len(subscribers))

	results := make([]Report, len(subscribers))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, sub := range subscribers {
		wg.Add(1)
		go func(idx int, sub Subscriber) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			results[idx] = s.checkSubscriber(ctx, sub)
		}(i, sub)
	}
	wg.Wait()

	report := Report{Subscribers: len(subscribers)}
	for _, r := range results {
		report.Notified += r.Notified
		report.Deduped += r.Deduped
		report.Failed += r.Failed
	}

	metrics.ObserveCycleDuration(time.Since(start))
	return report, nil
}

// checkSubscriber evaluates one subscriber against every tracked satellite.
// Provider and store errors fail only the unit of work they occur in.
func (s *Scheduler) checkSubscriber(ctx context.Context, sub Subscriber) Report {
	var report Report

	for _, satID := range s.cfg.SatelliteIDs {
		if ctx.Err() != nil {
			return report
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		forecast, err := s.provider.VisualPasses(callCtx, satID, sub.Latitude, sub.Longitude, 0, s.cfg.HorizonDays, s.cfg.MinVisibility)
		cancel()
		if err != nil {
			report.Failed++
			s.logger.Warn("pass prediction failed",
				"subscriber", sub.ID,
				"catalog", satID,
				"kind", string(passes.KindOf(err)),
				"error", err,
			)
			continue
		}

		for _, w := range forecast.Windows {
			if !s.eval.Eligible(w, s.now()) {
				continue
			}
			report = report.add(s.handleEligible(ctx, sub, w))
		}
	}

	return report
}

// handleEligible applies the dedup contract to one alert-eligible window:
// skip when a matching record exists, otherwise request delivery and write
// the history record regardless of the transport outcome. A failed send is
// recorded and never retried; that trades a lost notification for a
// guaranteed absence of duplicates.
func (s *Scheduler) handleEligible(ctx context.Context, sub Subscriber, w passes.Window) Report {
	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	exists, err := s.log.RecentExists(checkCtx, sub.ID, w.SatName, w.Start, s.cfg.DedupWindow)
	cancel()
	if err != nil {
		s.logger.Warn("notification history lookup failed", "subscriber", sub.ID, "satellite", w.SatName, "error", err)
		return Report{Failed: 1}
	}
	if exists {
		metrics.IncNotificationsDeduped()
		return Report{Deduped: 1}
	}

	status := "sent"
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	sendErr := s.transport.Send(sendCtx, Notification{Subscriber: sub, Window: w})
	cancel()
	if sendErr != nil {
		status = "failed"
		s.logger.Warn("notification delivery failed", "subscriber", sub.ID, "satellite", w.SatName, "error", sendErr)
	}
	metrics.IncNotifications(status)

	rec := NotificationRecord{
		SubscriberID:  sub.ID,
		SatelliteName: w.SatName,
		PassTime:      w.Start,
		Status:        status,
		CreatedAt:     s.now(),
	}

	insCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	err = s.log.Insert(insCtx, rec)
	cancel()
	if errors.Is(err, ErrDuplicateRecord) {
		// A concurrent cycle won the conditional insert.
		metrics.IncNotificationsDeduped()
		return Report{Deduped: 1}
	}
	if err != nil {
		s.logger.Warn("notification record write failed", "subscriber", sub.ID, "satellite", w.SatName, "error", err)
		return Report{Failed: 1}
	}

	if sendErr != nil {
		return Report{Failed: 1}
	}
	s.logger.Info("notification sent",
		"subscriber", sub.ID,
		"satellite", w.SatName,
		"pass_start", w.Start.UTC().Format(time.RFC3339),
		"max_elevation", w.MaxElevation,
	)
	return Report{Notified: 1}
}

func (r Report) add(o Report) Report {
	r.Notified += o.Notified
	r.Deduped += o.Deduped
	r.Failed += o.Failed
	return r
}
