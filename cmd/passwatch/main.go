package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/orbital/passwatch/internal/alert"
	"github.com/orbital/passwatch/internal/api"
	"github.com/orbital/passwatch/internal/config"
	"github.com/orbital/passwatch/internal/mail"
	"github.com/orbital/passwatch/internal/metrics"
	"github.com/orbital/passwatch/internal/passes"
	"github.com/orbital/passwatch/internal/propagation"
	"github.com/orbital/passwatch/internal/storage/postgres"
	"github.com/orbital/passwatch/internal/stream"
	"github.com/orbital/passwatch/internal/tle"
	"github.com/orbital/passwatch/internal/tracker"
)

func main() {
	configPath := flag.String("config", os.Getenv("PASSWATCH_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Element set pipeline: store, disk cache, fetcher, refresher.
	store := tle.NewStore()
	elementCache := tle.NewCache(cfg.Elements.CacheDir, cfg.Elements.MaxFiles)
	fetcher := tle.NewFetcher(cfg.Elements.SourceURL, logger)
	refresher := tle.NewRefresher(fetcher, store, elementCache, cfg.Elements.MaxAge, logger)

	// Live tracking: every dataset replacement builds a fresh tracker over
	// the new records; the old one is stopped once the new one is running.
	workers := cfg.Tracker.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	pool := propagation.NewPool(workers, logger)
	hub := stream.NewHub()

	var trackerMu sync.Mutex
	var current *tracker.Tracker

	swapTracker := func(ds *tle.Dataset) {
		records := propagation.BuildRecords(ds.Satellites, logger)
		if len(records) == 0 {
			logger.Warn("dataset produced no propagatable records, keeping current tracker")
			return
		}

		next := tracker.New(
			propagation.NewBatch(records, pool),
			cfg.Tracker.Interval,
			func(snap *propagation.Snapshot) { hub.Publish(snap) },
			logger,
		)
		if err := next.Start(); err != nil {
			logger.Error("tracker start failed", "error", err)
			return
		}

		trackerMu.Lock()
		previous := current
		current = next
		trackerMu.Unlock()

		if previous != nil {
			previous.Stop()
		}
		logger.Info("tracker swapped", "satellites", len(records))
	}
	refresher.OnUpdate = swapTracker

	latest := func() *propagation.Snapshot {
		trackerMu.Lock()
		t := current
		trackerMu.Unlock()
		if t == nil {
			return nil
		}
		return t.Latest()
	}

	refresher.LoadCached()
	go refresher.Run(ctx)

	// Notification scheduling requires the database, the pass provider, and
	// the mail transport. Without a DSN the service runs tracking-only.
	if cfg.Database.DSN == "" {
		logger.Warn("no database configured, notification scheduling disabled")
	} else {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		dbPool, err := postgres.NewPool(dbCtx, cfg.Database.DSN)
		cancel()
		if err != nil {
			logger.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		provider := passes.NewClient(passes.ClientConfig{
			BaseURL:           cfg.Provider.BaseURL,
			APIKey:            cfg.Provider.APIKey,
			Timeout:           cfg.Provider.Timeout,
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			Burst:             cfg.Provider.Burst,
		}, logger)

		transport := mail.NewClient(mail.Config{
			BaseURL: cfg.Mail.BaseURL,
			APIKey:  cfg.Mail.APIKey,
			From:    cfg.Mail.From,
			AppURL:  cfg.Mail.AppURL,
		}, logger)

		scheduler := alert.NewScheduler(
			alert.Config{
				SatelliteIDs:  cfg.Alert.SatelliteIDs,
				HorizonDays:   cfg.Alert.HorizonDays,
				MinVisibility: cfg.Alert.MinVisibility,
				DedupWindow:   cfg.Alert.DedupWindow,
				Concurrency:   cfg.Alert.Concurrency,
			},
			postgres.NewSubscriberStore(dbPool),
			postgres.NewNotificationStore(dbPool),
			provider,
			transport,
			passes.NewEvaluator(cfg.Alert.MinLead, cfg.Alert.MaxLead),
			logger,
		)
		go scheduler.Run(ctx, cfg.Alert.Interval)
	}

	// Background goroutine to update the element set age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetElementSetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	streamHandler := stream.NewHandler(hub, store, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
	}, logger)

	ready := func() bool { return latest() != nil }
	srv := api.NewServer(cfg.Server.Addr, latest, streamHandler, ready, logger)

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "source_url", fetcher.SourceURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	trackerMu.Lock()
	t := current
	trackerMu.Unlock()
	if t != nil {
		t.Stop()
	}

	logger.Info("server stopped")
}
