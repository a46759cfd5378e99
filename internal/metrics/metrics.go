// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts batch outcomes with Prometheus collectors and
// exports them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/pdf-harvest/pkg/types"
)

const namespace = "pdf_harvest"

// Metrics holds the collectors of one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	urlsTotal     *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	fileSize      prometheus.Histogram
	duration      *prometheus.HistogramVec
	lastRun       prometheus.Gauge
}

// New creates the collectors and registers them.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.urlsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_total",
			Help:      "URLs processed, by result and download method.",
		},
		[]string{"result", "method"},
	)
	m.stageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Strategy failures, by stage.",
		},
		[]string{"stage"},
	)
	m.fileSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "file_size_bytes",
		Help:      "Size of downloaded PDFs.",
		Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
	})
	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "url_duration_seconds",
			Help:      "Time spent resolving one URL, by result.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"result"},
	)
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})

	m.registry.MustRegister(m.urlsTotal, m.stageFailures, m.fileSize, m.duration, m.lastRun)
	return m
}

// Observe records one outcome and the time it took.
func (m *Metrics) Observe(o types.Outcome, elapsed time.Duration) {
	if o.Result != nil {
		m.urlsTotal.WithLabelValues("success", string(o.Result.Method)).Inc()
		m.fileSize.Observe(float64(o.Result.ByteCount))
		m.duration.WithLabelValues("success").Observe(elapsed.Seconds())
	} else {
		m.urlsTotal.WithLabelValues("failure", "none").Inc()
		m.duration.WithLabelValues("failure").Observe(elapsed.Seconds())
	}
	if o.Failure != nil {
		for _, se := range o.Failure.StageErrors {
			m.stageFailures.WithLabelValues(string(se.Stage)).Inc()
		}
	}
}

// Finish stamps the end of the run.
func (m *Metrics) Finish(at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
