package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passwatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	elementSetCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passwatch_element_set_satellites",
		Help: "Number of satellites in the current element set.",
	})

	elementSetAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passwatch_element_set_age_seconds",
		Help: "Age of the current element set in seconds.",
	})

	propagationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "passwatch_propagation_pass_duration_seconds",
		Help:    "Duration of a full batch propagation pass.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	propagationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_propagation_total",
			Help: "Per-satellite propagation outcomes.",
		},
		[]string{"result"},
	)

	trackedSatellites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passwatch_tracked_satellites",
		Help: "Number of satellites owned by the live tracker.",
	})

	activeSatellites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passwatch_active_satellites",
		Help: "Satellites in the latest snapshot above 100 km altitude.",
	})

	trackerSnapshots = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passwatch_tracker_snapshots_total",
		Help: "Snapshots published by the live tracker.",
	})

	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_provider_requests_total",
			Help: "Pass prediction provider requests by result.",
		},
		[]string{"result"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_notifications_total",
			Help: "Notification delivery requests by status.",
		},
		[]string{"status"},
	)

	notificationsDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passwatch_notifications_deduped_total",
		Help: "Alert-eligible passes skipped because a matching record exists.",
	})

	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "passwatch_alert_cycle_duration_seconds",
		Help:    "Duration of a full notification scheduling cycle.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120},
	})

	subscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passwatch_subscribers_active",
		Help: "Active subscribers seen in the latest scheduling cycle.",
	})

	streamConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_stream_connections_total",
			Help: "Stream connect/disconnect events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passwatch_streams_active",
		Help: "Currently connected position streams.",
	})

	streamMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passwatch_stream_messages_total",
		Help: "Position batch messages sent to stream clients.",
	})

	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passwatch_stream_errors_total",
			Help: "Stream errors by kind.",
		},
		[]string{"kind"},
	)

	streamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "passwatch_stream_bytes_total",
		Help: "Bytes written to stream clients.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		elementSetCount,
		elementSetAge,
		propagationDuration,
		propagationTotal,
		trackedSatellites,
		activeSatellites,
		trackerSnapshots,
		providerRequestsTotal,
		notificationsTotal,
		notificationsDeduped,
		cycleDuration,
		subscribersActive,
		streamConnections,
		streamsActive,
		streamMessages,
		streamErrors,
		streamBytes,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetElementSetCount(n int)   { elementSetCount.Set(float64(n)) }
func SetElementSetAge(s float64) { elementSetAge.Set(s) }

// RecordPropagation records one batch pass: its duration and per-satellite outcomes.
func RecordPropagation(d time.Duration, success, errors int) {
	propagationDuration.Observe(d.Seconds())
	propagationTotal.WithLabelValues("success").Add(float64(success))
	propagationTotal.WithLabelValues("error").Add(float64(errors))
}

func SetTrackedSatellites(n int) { trackedSatellites.Set(float64(n)) }
func SetActiveSatellites(n int)  { activeSatellites.Set(float64(n)) }
func IncTrackerSnapshots()       { trackerSnapshots.Inc() }

func IncProviderRequests(result string) { providerRequestsTotal.WithLabelValues(result).Inc() }

func IncNotifications(status string) { notificationsTotal.WithLabelValues(status).Inc() }
func IncNotificationsDeduped()       { notificationsDeduped.Inc() }

func ObserveCycleDuration(d time.Duration) { cycleDuration.Observe(d.Seconds()) }
func SetSubscribersActive(n int)           { subscribersActive.Set(float64(n)) }

func IncStreamConnections(event string) { streamConnections.WithLabelValues(event).Inc() }
func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamMessages()                { streamMessages.Inc() }
func IncStreamErrors(kind string)       { streamErrors.WithLabelValues(kind).Inc() }
func AddStreamBytes(n int64)            { streamBytes.Add(float64(n)) }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer for http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush forwards to the underlying writer; streaming handlers downstream of
// this middleware depend on it.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
