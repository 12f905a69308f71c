package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runesmith_dashboard_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runesmith_dashboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runesmith_dashboard_http_requests_in_flight",
		Help: "Current number of HTTP requests being processed.",
	})

	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runesmith_dashboard_backend_requests_total",
			Help: "Backend calls by endpoint and outcome (ok, http_<code>, error).",
		},
		[]string{"endpoint", "outcome"},
	)

	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runesmith_dashboard_backend_request_duration_seconds",
			Help:    "Backend call latency in seconds by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	pollTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runesmith_dashboard_poll_ticks_total",
		Help: "Number of poll ticks fired while activity was observed.",
	})

	polling = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runesmith_dashboard_polling",
		Help: "1 while the activity-gated poller is running, 0 while idle.",
	})

	toastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runesmith_dashboard_toasts_total",
			Help: "Notifications pushed, partitioned by severity.",
		},
		[]string{"severity"},
	)
)

// EntityCounter is the subset of store.Store needed to report entity counts.
type EntityCounter interface {
	Counts() map[string]int
}

// entityCollector reads the store on each scrape to report collection sizes.
type entityCollector struct {
	store        EntityCounter
	entitiesDesc *prometheus.Desc
}

func (c *entityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entitiesDesc
}

func (c *entityCollector) Collect(ch chan<- prometheus.Metric) {
	for collection, n := range c.store.Counts() {
		ch <- prometheus.MustNewConstMetric(
			c.entitiesDesc,
			prometheus.GaugeValue,
			float64(n),
			collection,
		)
	}
}

// Register registers the service metrics with the default Prometheus
// registry, which already carries the Go runtime and process collectors.
// Call once at startup.
func Register(store EntityCounter) {
	prometheus.MustRegister(
		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,

		// Synchronization metrics
		backendRequestsTotal,
		backendRequestDuration,
		pollTicksTotal,
		polling,
		toastsTotal,
		newEntityCollector(store),
	)
}

func newEntityCollector(store EntityCounter) *entityCollector {
	return &entityCollector{
		store: store,
		entitiesDesc: prometheus.NewDesc(
			"runesmith_dashboard_entities",
			"Number of entities in the latest snapshot, partitioned by collection.",
			[]string{"collection"},
			nil,
		),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBackend records one backend call. statusCode is 0 for transport
// failures.
func ObserveBackend(endpoint string, statusCode int, err error, d time.Duration) {
	outcome := "ok"
	switch {
	case statusCode != 0:
		outcome = "http_" + strconv.Itoa(statusCode)
	case err != nil:
		outcome = "error"
	}
	backendRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	backendRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// PollTick counts one poll tick.
func PollTick() {
	pollTicksTotal.Inc()
}

// SetPolling reports the poller state.
func SetPolling(active bool) {
	if active {
		polling.Set(1)
		return
	}
	polling.Set(0)
}

// ToastPushed counts one notification.
func ToastPushed(isError bool) {
	severity := "info"
	if isError {
		severity = "error"
	}
	toastsTotal.WithLabelValues(severity).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/dashboard")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
