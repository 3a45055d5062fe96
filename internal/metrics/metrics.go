// Package metrics exports Prometheus metrics for CMS requests, the page cache
// and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spacetraveling"

// Metrics holds the registry and every collector the site exports.
type Metrics struct {
	registry *prometheus.Registry

	// CMS metrics
	CMSRequests        *prometheus.CounterVec
	CMSRequestDuration *prometheus.HistogramVec

	// Page cache metrics
	CacheLookups         *prometheus.CounterVec
	Regenerations        *prometheus.CounterVec
	RegenerationDuration prometheus.Histogram

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	initCMSMetrics(m)
	initCacheMetrics(m)
	initHTTPMetrics(m)
	return m
}

func initCMSMetrics(m *Metrics) {
	m.CMSRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cms_requests_total",
		Help:      "Content API requests by operation and outcome",
	}, []string{"operation", "outcome"})

	m.CMSRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cms_request_duration_seconds",
		Help:      "Content API request latency, retries included",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"operation"})

	m.registry.MustRegister(m.CMSRequests, m.CMSRequestDuration)
}

func initCacheMetrics(m *Metrics) {
	m.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "page_cache_lookups_total",
		Help:      "Page cache lookups by state (fresh, stale, miss, bypass)",
	}, []string{"state"})

	m.Regenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "page_regenerations_total",
		Help:      "Background page regenerations by outcome",
	}, []string{"outcome"})

	m.RegenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "page_regeneration_duration_seconds",
		Help:      "Time to regenerate a stale page",
		Buckets:   prometheus.DefBuckets,
	})

	m.registry.MustRegister(m.CacheLookups, m.Regenerations, m.RegenerationDuration)
}

func initHTTPMetrics(m *Metrics) {
	m.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(m.HTTPRequests, m.HTTPRequestDuration)
}

// ObserveRequest records one CMS request.
func (m *Metrics) ObserveRequest(operation, outcome string, elapsed time.Duration) {
	m.CMSRequests.WithLabelValues(operation, outcome).Inc()
	m.CMSRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveCacheLookup records how a page request was answered.
func (m *Metrics) ObserveCacheLookup(state string) {
	m.CacheLookups.WithLabelValues(state).Inc()
}

// ObserveRegeneration records one background regeneration.
func (m *Metrics) ObserveRegeneration(outcome string, elapsed time.Duration) {
	m.Regenerations.WithLabelValues(outcome).Inc()
	m.RegenerationDuration.Observe(elapsed.Seconds())
}

// Middleware records every request under its route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
