// Package selfmetrics holds the exporter's own metrics, served on /metrics.
package selfmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jsonnet_exporter"

type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	responseSize  *prometheus.HistogramVec
	duration      *prometheus.HistogramVec
	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	moduleTests   *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	lastReload    prometheus.Gauge
}

// New registers all collectors on a fresh registry. Runtime collectors are
// skipped when withRuntime is false, which keeps test output small.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by handler and status code.",
		}, []string{"handler", "code"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Size of HTTP responses in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"handler"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"handler"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total number of probes by module and result.",
		}, []string{"module", "result"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of probes in seconds, fetch included.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"module"}),
		moduleTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_tests_total",
			Help:      "Module test case results from the last validations.",
		}, []string{"module", "result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Config reload attempts by result.",
		}, []string{"result"}),
		lastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_last_reload_success_timestamp_seconds",
			Help:      "Timestamp of the last successful config load.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.responseSize, m.duration,
		m.probes, m.probeDuration, m.moduleTests,
		m.reloads, m.lastReload,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count, size and latency keyed by route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		m.requests.WithLabelValues(handler, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(handler).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			m.responseSize.WithLabelValues(handler).Observe(float64(n))
		}
	}
}

func (m *Metrics) ObserveProbe(module, result string, d time.Duration) {
	m.probes.WithLabelValues(module, result).Inc()
	m.probeDuration.WithLabelValues(module).Observe(d.Seconds())
}

func (m *Metrics) ObserveTest(module, result string) {
	m.moduleTests.WithLabelValues(module, result).Inc()
}

// ObserveReload counts a reload attempt; err is nil on success.
func (m *Metrics) ObserveReload(err error) {
	if err != nil {
		m.reloads.WithLabelValues("failure").Inc()
		return
	}
	m.reloads.WithLabelValues("success").Inc()
	m.lastReload.SetToCurrentTime()
}
