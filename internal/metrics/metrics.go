// Package metrics exposes Prometheus instrumentation for the analysis workflow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so tests can build independent instances.
// All methods are safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	uploadsTotal     *prometheus.CounterVec
	analysesTotal    *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	pollAttempts     prometheus.Histogram
	cleanupsTotal    *prometheus.CounterVec
	analysesInFlight prometheus.Gauge
}

// NewCollector registers every workflow metric under the given namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) { reg.MustRegister(c) }

	c := &Collector{registry: reg}

	c.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of media uploads by extension and result",
		},
		[]string{"ext", "result"},
	)
	c.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of analyses by outcome and failing stage",
		},
		[]string{"outcome", "stage"},
	)
	c.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_stage_duration_seconds",
			Help:      "Duration of each analysis stage in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
	c.pollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_poll_attempts",
			Help:      "Number of remote state fetches per analysis",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	c.cleanupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_cleanups_total",
			Help:      "Temp file removals by reason and result",
		},
		[]string{"reason", "result"},
	)
	c.analysesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analyses_in_flight",
			Help:      "Analyses currently running",
		},
	)

	factory(c.uploadsTotal)
	factory(c.analysesTotal)
	factory(c.stageDuration)
	factory(c.pollAttempts)
	factory(c.cleanupsTotal)
	factory(c.analysesInFlight)
	factory(collectors.NewGoCollector())
	factory(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) RecordUpload(ext, result string) {
	if c == nil {
		return
	}
	c.uploadsTotal.WithLabelValues(ext, result).Inc()
}

// RecordAnalysis counts a finished analysis; stage is empty on success.
func (c *Collector) RecordAnalysis(outcome, stage string) {
	if c == nil {
		return
	}
	c.analysesTotal.WithLabelValues(outcome, stage).Inc()
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) ObservePollAttempts(n int) {
	if c == nil {
		return
	}
	c.pollAttempts.Observe(float64(n))
}

func (c *Collector) RecordCleanup(reason, result string) {
	if c == nil {
		return
	}
	c.cleanupsTotal.WithLabelValues(reason, result).Inc()
}

func (c *Collector) AnalysisStarted() {
	if c == nil {
		return
	}
	c.analysesInFlight.Inc()
}

func (c *Collector) AnalysisFinished() {
	if c == nil {
		return
	}
	c.analysesInFlight.Dec()
}
