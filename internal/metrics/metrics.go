// Package metrics counts Data Handler jobs and report degradations for one
// elogger invocation. Counters live in a private registry and are exported
// through the node-exporter textfile format, since the CLI exits before any
// scraper could reach it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	jobs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	attachments prometheus.Counter
	sentinels   *prometheus.CounterVec
}

// New returns a Metrics with every collector registered.
func New() *Metrics {
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elogger_jobs_total",
		Help: "Data Handler jobs submitted, by request kind.",
	}, []string{"kind"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elogger_job_failures_total",
		Help: "Data Handler jobs that did not produce a download, by kind and error class.",
	}, []string{"kind", "class"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "elogger_job_duration_seconds",
		Help:    "Wall time from websocket dial to completed download.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"kind"})
	attachments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elogger_attachments_total",
		Help: "Files attached to the elog entry.",
	})
	sentinels := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elogger_sentinels_total",
		Help: "Table cells degraded to a sentinel marker, by marker.",
	}, []string{"sentinel"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(jobs, failures, duration, attachments, sentinels)

	return &Metrics{
		reg:         reg,
		jobs:        jobs,
		failures:    failures,
		duration:    duration,
		attachments: attachments,
		sentinels:   sentinels,
	}
}

// Registry exposes the underlying registry (tests, custom exporters).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// JobFinished records one job. class is "" on success.
func (m *Metrics) JobFinished(kind, class string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
	if class != "" {
		m.failures.WithLabelValues(kind, class).Inc()
	}
}

// AttachmentAdded records one file appended to an entry.
func (m *Metrics) AttachmentAdded() {
	if m == nil {
		return
	}
	m.attachments.Inc()
}

// SentinelEmitted records one degraded cell.
func (m *Metrics) SentinelEmitted(sentinel string) {
	if m == nil {
		return
	}
	m.sentinels.WithLabelValues(sentinel).Inc()
}

// WriteTextfile writes every metric to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
