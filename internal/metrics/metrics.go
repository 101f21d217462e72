package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/pasaeventos-api/internal/version"
)

type ServerMetrics struct {
	reg                    *prometheus.Registry
	handler                http.Handler
	inflight               prometheus.Gauge
	reqTotal               *prometheus.CounterVec
	reqDur                 *prometheus.HistogramVec
	respBytes              *prometheus.HistogramVec
	httpPanicTotal         prometheus.Counter
	buildInfo              *prometheus.GaugeVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	errorsTotal    *prometheus.CounterVec
	errorResponses *prometheus.CounterVec

	profilingActive prometheus.Gauge

	// dependency probes
	dependencyUp       *prometheus.GaugeVec
	probeDuration      *prometheus.HistogramVec
	healthChecksFailed prometheus.Counter
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		errorResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_error_responses_total",
			Help: "Error responses written by the error pipeline, by kind and status",
		}, []string{"kind", "status"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		dependencyUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dependency_up",
			Help: "Whether the last probe of a dependency succeeded (1) or failed (0)",
		}, []string{"dependency"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dependency_probe_duration_seconds",
			Help:    "Dependency probe latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"dependency"}),
		healthChecksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "health_checks_degraded_total",
			Help: "Health checks that reported at least one dependency down",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.errorsTotal,
		m.errorResponses,
		m.profilingActive,
		m.dependencyUp,
		m.probeDuration,
		m.healthChecksFailed,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// ObserveProbe records one dependency probe. Its signature matches
// health.Observer once adapted by the caller.
func (m *ServerMetrics) ObserveProbe(dependency string, ok bool, took time.Duration) {
	up := 0.0
	if ok {
		up = 1
	}
	m.dependencyUp.WithLabelValues(dependency).Set(up)
	m.probeDuration.WithLabelValues(dependency).Observe(took.Seconds())
}

func (m *ServerMetrics) IncHealthDegraded() {
	m.healthChecksFailed.Inc()
}

// IncErrorResponse counts a response written by the error pipeline.
// kind is a fixed enum, so label cardinality stays bounded.
func (m *ServerMetrics) IncErrorResponse(kind string, status int) {
	m.errorResponses.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}
