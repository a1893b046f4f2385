// Package stream implements Server-Sent Events (SSE) streaming of live
// satellite positions. Clients connect via GET /api/v1/stream/positions and
// receive a geodetic position batch for every tracker snapshot.
//
// SSE message format:
//
//	data: {"type":"position_batch","at":"2026-08-29T04:00:00Z","satellites":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","dataset_epoch":"...","tle_age_seconds":1800}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// idle timeouts. Reconnecting clients receive a fresh metadata message on
// each connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/orbital/passwatch/internal/metrics"
	"github.com/orbital/passwatch/internal/propagation"
	"github.com/orbital/passwatch/internal/tle"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
}

// Handler manages SSE streaming connections.
type Handler struct {
	hub    *Hub
	store  *tle.Store
	config Config
	gate   *ipGate
	logger *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(hub *Hub, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		hub:    hub,
		store:  store,
		config: config,
		gate:   newIPGate(config.MaxConcurrentPerIP),
		logger: logger,
	}
}

// streamWriteDeadline bounds each frame write; it is pushed forward on
// every send so healthy long-lived streams never hit it.
const streamWriteDeadline = 30 * time.Second

// sseWriter frames messages for one stream connection.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	flusher http.Flusher
}

// event marshals v and writes it as one "data:" frame.
func (s sseWriter) event(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding stream event: %w", err)
	}
	s.rc.SetWriteDeadline(time.Now().Add(streamWriteDeadline))
	n, err := fmt.Fprintf(s.w, "data: %s\n\n", payload)
	if err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}
	s.flusher.Flush()
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// comment writes an empty SSE comment, keeping idle connections open
// through proxies that drop quiet streams.
func (s sseWriter) comment() error {
	s.rc.SetWriteDeadline(time.Now().Add(streamWriteDeadline))
	n, err := fmt.Fprint(s.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("writing keepalive: %w", err)
	}
	s.flusher.Flush()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// retryHint tells the client how long to wait before reconnecting. Jitter
// spreads reconnects out after a server restart.
func (s sseWriter) retryHint() {
	fmt.Fprintf(s.w, "retry: %d\n\n", 3000+rand.Intn(4000))
	s.flusher.Flush()
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	// Rate limiting: enforce concurrent stream limit per IP.
	ip := clientIP(r)
	held, ok := h.gate.tryAcquire(ip)
	if !ok {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", held,
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		h.gate.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Use ResponseController to manage write deadlines for long-lived SSE.
	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	sw := sseWriter{w: w, rc: rc, flusher: flusher}
	sw.retryHint()

	// Send metadata message (first message on every connection).
	if ds := h.store.Get(); ds != nil {
		meta := metadataMessage{
			Type:         "metadata",
			DatasetEpoch: ds.FetchedAt.UTC().Format(time.RFC3339),
			TLEAge:       int(time.Since(ds.FetchedAt).Seconds()),
		}
		if err := sw.event(meta); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	snapshots, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return

		case snap := <-snapshots:
			if snap == nil {
				continue
			}
			if err := sw.event(buildBatchMessage(snap)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := sw.comment(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// buildBatchMessage formats a snapshot into the SSE batch payload.
func buildBatchMessage(snap *propagation.Snapshot) positionBatchMessage {
	return positionBatchMessage{
		Type:       "position_batch",
		At:         snap.At.UTC().Format(time.RFC3339),
		Satellites: snap.Samples,
	}
}

// clientIP extracts the client address, preferring the first entry of
// X-Forwarded-For when present (the service runs behind a proxy in
// production).
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SSE message payload types.

type metadataMessage struct {
	Type         string `json:"type"`
	DatasetEpoch string `json:"dataset_epoch"`
	TLEAge       int    `json:"tle_age_seconds"`
}

type positionBatchMessage struct {
	Type       string               `json:"type"`
	At         string               `json:"at"`
	Satellites []propagation.Sample `json:"satellites"`
}
