// Package metrics exposes pipeline run metrics to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-etl-pipeline/internal/pipeline"
)

// Collector holds the pipeline metrics in its own registry. It implements
// pipeline.Observer and can be shared by every runner of a process.
type Collector struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	ActiveRuns          prometheus.Gauge
	PhaseDuration       *prometheus.HistogramVec
	FetchedTotal        prometheus.Counter
	ProcessedTotal      prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector whose metric names are prefixed with
// namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished pipeline runs",
		}, []string{"status"}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of pipeline runs in progress",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline lifecycle phases in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase", "status"}),
		FetchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total number of records fetched from sources",
		}),
		ProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Total number of records transformed and loaded",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		c.RunsTotal,
		c.ActiveRuns,
		c.PhaseDuration,
		c.FetchedTotal,
		c.ProcessedTotal,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler that serves Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RunStarted increments the active run gauge.
func (c *Collector) RunStarted() { c.ActiveRuns.Inc() }

// RunFinished decrements the active run gauge and counts the run by status.
func (c *Collector) RunFinished(status string) {
	c.ActiveRuns.Dec()
	c.RunsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *Collector) PhaseStarted(context.Context, pipeline.Phase) {}

func (c *Collector) PhaseFinished(_ context.Context, phase pipeline.Phase, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.PhaseDuration.WithLabelValues(phase.String(), status).Observe(elapsed.Seconds())
}

func (c *Collector) RecordsFetched(_ context.Context, n int) {
	c.FetchedTotal.Add(float64(n))
}

func (c *Collector) RecordProcessed(context.Context) {
	c.ProcessedTotal.Inc()
}
