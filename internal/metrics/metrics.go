package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	viewRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_view_renders_total",
			Help: "Re-evaluations of live collection views.",
		},
		[]string{"collection"},
	)

	viewSnapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_view_snapshots_total",
			Help: "Snapshots received by live collection views.",
		},
		[]string{"collection"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_notifications_sent_total",
			Help: "Notification entries written, by recipient collection and counter outcome.",
		},
		[]string{"collection", "counter"},
	)

	registerOnce sync.Once
)

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, viewRenders, viewSnapshots, notificationsSent)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ViewRendered counts one re-evaluation of a view over collection.
func ViewRendered(collection string) {
	viewRenders.WithLabelValues(collection).Inc()
}

// SnapshotReceived counts one emission of collection.
func SnapshotReceived(collection string) {
	viewSnapshots.WithLabelValues(collection).Inc()
}

// NotificationSent counts one written entry; counterOK tells whether the unread counter was incremented.
func NotificationSent(collection string, counterOK bool) {
	outcome := "ok"
	if !counterOK {
		outcome = "failed"
	}
	notificationsSent.WithLabelValues(collection, outcome).Inc()
}

// Instrument measures in-flight requests, totals and latency of the route.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
