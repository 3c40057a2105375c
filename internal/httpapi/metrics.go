package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"spilld/internal/spill"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilld",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spilld",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "spilld",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilld",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Total backpressure rejections (429)",
		},
		[]string{"reason"},
	)

	spillEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilld",
			Subsystem: "manager",
			Name:      "events_total",
			Help:      "Spill manager lifecycle events by name",
		},
		[]string{"event"},
	)

	spillEventBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spilld",
			Subsystem: "manager",
			Name:      "event_bytes_total",
			Help:      "Bytes covered by spill manager lifecycle events",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, backpressureTotal, spillEventsTotal, spillEventBytes)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		// the pattern is only known once chi has routed the request
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementBackpressure is called when returning 429 to the client
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}

// MetricsPublisher counts spill manager events. Install it through
// spill.ManagerConfig.Publisher.
type MetricsPublisher struct{}

func (MetricsPublisher) Publish(e spill.Event) {
	spillEventsTotal.WithLabelValues(e.Name).Inc()
	if e.Size > 0 {
		spillEventBytes.WithLabelValues(e.Name).Add(float64(e.Size))
	}
}

// StatusCollector exports a Service's status as gauges on every scrape.
type StatusCollector struct {
	svc Service

	buffers        *prometheus.Desc
	spillable      *prometheus.Desc
	exposed        *prometheus.Desc
	spilledBytes   *prometheus.Desc
	unspilledBytes *prometheus.Desc
	limitBytes     *prometheus.Desc
	deviceBytes    *prometheus.Desc
	enabled        *prometheus.Desc
}

// NewStatusCollector returns a collector reading svc.Status().
func NewStatusCollector(svc Service) *StatusCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("spilld", "manager", name), help, labels, nil)
	}
	return &StatusCollector{
		svc:            svc,
		buffers:        desc("buffers", "Registered base buffers"),
		spillable:      desc("spillable_buffers", "Registered buffers that may be spilled"),
		exposed:        desc("exposed_buffers", "Registered buffers whose device address was handed out"),
		spilledBytes:   desc("spilled_bytes", "Bytes of registered buffers in host memory"),
		unspilledBytes: desc("unspilled_bytes", "Bytes of registered buffers on device"),
		limitBytes:     desc("device_memory_limit_bytes", "Configured device memory limit; absent when unbounded"),
		deviceBytes:    desc("device_bytes", "Simulated device accounting", "kind"),
		enabled:        desc("enabled", "Whether the spill manager is enabled"),
	}
}

func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.buffers
	ch <- c.spillable
	ch <- c.exposed
	ch <- c.spilledBytes
	ch <- c.unspilledBytes
	ch <- c.limitBytes
	ch <- c.deviceBytes
	ch <- c.enabled
}

func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.svc.Status()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	enabled := 0.0
	if st.Enabled {
		enabled = 1
	}
	gauge(c.enabled, enabled)
	gauge(c.buffers, float64(st.Buffers))
	gauge(c.spillable, float64(st.SpillableBuffers))
	gauge(c.exposed, float64(st.ExposedBuffers))
	gauge(c.spilledBytes, float64(st.SpilledBytes))
	gauge(c.unspilledBytes, float64(st.UnspilledBytes))
	if st.DeviceMemoryLimit != nil {
		gauge(c.limitBytes, float64(*st.DeviceMemoryLimit))
	}
	gauge(c.deviceBytes, float64(st.Device.CapacityBytes), "capacity")
	gauge(c.deviceBytes, float64(st.Device.CommittedBytes), "committed")
	gauge(c.deviceBytes, float64(st.Device.ReservedBytes), "reserved")
}
