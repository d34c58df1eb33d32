package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Auth metrics
var (
	authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Requests rejected by the bearer token check, by reason.",
		},
		[]string{"reason"},
	)

	authLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

var serviceReady = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "service_ready",
	Help: "1 when the last readiness check passed.",
})

var initOnce sync.Once

// Init registers the collectors in the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, authRejections, authLogins, serviceReady)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthRejected counts a rejected bearer check. reason is a short fixed label
// such as "missing", "format", "token" or "subject".
func AuthRejected(reason string) {
	authRejections.WithLabelValues(reason).Inc()
}

// LoginAttempt counts a login by outcome: "success", "invalid" or "error".
func LoginAttempt(outcome string) {
	authLogins.WithLabelValues(outcome).Inc()
}

// SetReady records the outcome of the latest readiness check.
func SetReady(ready bool) {
	if ready {
		serviceReady.Set(1)
		return
	}
	serviceReady.Set(0)
}

// Instrument records in-flight, count and latency per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// otherPath labels every request outside the known routes.
const otherPath = "other"

var knownPaths = map[string]bool{
	"/auth/register": true,
	"/auth/login":    true,
	"/auth/me":       true,
	"/posts":         true,
	"/healthz":       true,
	"/readyz":        true,
	"/v1/info":       true,
	"/metrics":       true,
}

// CanonicalPath maps a request path onto a fixed set of route labels: post
// ids collapse to /posts/:id and anything unrouted becomes "other".
func CanonicalPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if knownPaths[raw] {
		return raw
	}
	if id, ok := strings.CutPrefix(raw, "/posts/"); ok && id != "" && !strings.Contains(id, "/") {
		return "/posts/:id"
	}
	return otherPath
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
