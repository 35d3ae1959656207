// Package telemetry holds the collector's own Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetstatus"

// Ingest outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeBadRequest   = "bad_request"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	ingestReports  *prometheus.CounterVec
	ingestSamples  *prometheus.CounterVec
	healthChecks   *prometheus.CounterVec
	healthDuration prometheus.Histogram
	httpDuration   *prometheus.HistogramVec
}

// New creates the metrics on a fresh registry with Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_reports_total",
			Help:      "Ingested reports by outcome.",
		}, []string{"outcome"}),
		ingestSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_samples_total",
			Help:      "Persisted samples by metric name.",
		}, []string{"metric"}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Fleet health computations by resulting status.",
		}, []string{"status"}),
		healthDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_compute_seconds",
			Help:      "Time spent computing fleet health.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestReports,
		m.ingestSamples,
		m.healthChecks,
		m.healthDuration,
		m.httpDuration,
	)
	return m
}

// ObserveIngest counts one report and its persisted samples. A nil *Metrics is a no-op.
func (m *Metrics) ObserveIngest(outcome string, samples []string) {
	if m == nil {
		return
	}
	m.ingestReports.WithLabelValues(outcome).Inc()
	for _, name := range samples {
		m.ingestSamples.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) ObserveHealth(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.healthChecks.WithLabelValues(status).Inc()
	m.healthDuration.Observe(took.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request latency labelled by the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
