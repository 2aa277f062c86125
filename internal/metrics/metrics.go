// Package metrics exposes Prometheus counters for the processing pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slate",
			Subsystem: "jobs",
			Name:      "started_total",
			Help:      "Total number of processing jobs started",
		},
	)
	JobsSucceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slate",
			Subsystem: "jobs",
			Name:      "succeeded_total",
			Help:      "Total number of processing jobs that completed successfully",
		},
	)
	JobsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slate",
			Subsystem: "jobs",
			Name:      "failed_total",
			Help:      "Total number of processing jobs that failed, by stage",
		},
		[]string{"stage"},
	)
	PartsProduced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slate",
			Subsystem: "output",
			Name:      "parts_total",
			Help:      "Total number of video parts produced, including passthrough files",
		},
	)
	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slate",
			Subsystem: "jobs",
			Name:      "active",
			Help:      "Number of jobs currently in flight",
		},
	)
	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slate",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of processing jobs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slate",
			Subsystem: "stages",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of individual pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(JobsStarted)
	prometheus.MustRegister(JobsSucceeded)
	prometheus.MustRegister(JobsFailed)
	prometheus.MustRegister(PartsProduced)
	prometheus.MustRegister(ActiveJobs)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(StageDuration)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
