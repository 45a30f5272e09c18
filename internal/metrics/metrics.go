// Package metrics provides Prometheus metrics for the extraction pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Classification metrics
	PagesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_pages_classified_total",
			Help: "Pages classified, by resulting label",
		},
		[]string{"label"},
	)

	// Extraction metrics
	ExtractionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_extraction_attempts_total",
			Help: "Inference attempts made, including retries",
		},
		[]string{"backend", "label"},
	)

	ExtractionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_extraction_retries_total",
			Help: "Inference attempts beyond the first, per page",
		},
		[]string{"backend", "label"},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statement_extraction_duration_seconds",
			Help:    "Wall time of one page extraction including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend", "label"},
	)

	PageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_page_outcomes_total",
			Help: "Terminal page outcomes",
		},
		[]string{"status"},
	)

	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_runs_total",
			Help: "Pipeline runs, by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statement_run_duration_seconds",
			Help:    "End-to-end pipeline run duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statement_rate_limit_hits_total",
			Help: "Rate-limit responses from the inference backend",
		},
	)
)

// Recorder binds the backend label once and exposes typed record helpers.
// A nil *Recorder is a no-op so tests and tools can leave metrics unwired.
type Recorder struct {
	backend string
}

// NewRecorder creates a metrics recorder for one inference backend.
func NewRecorder(backend string) *Recorder {
	return &Recorder{backend: backend}
}

// RecordClassification records one classified page.
func (r *Recorder) RecordClassification(label string) {
	if r == nil {
		return
	}
	PagesClassified.WithLabelValues(label).Inc()
}

// RecordExtraction records a finished page extraction.
func (r *Recorder) RecordExtraction(label string, attempts int, duration time.Duration) {
	if r == nil {
		return
	}
	ExtractionAttempts.WithLabelValues(r.backend, label).Add(float64(attempts))
	if attempts > 1 {
		ExtractionRetries.WithLabelValues(r.backend, label).Add(float64(attempts - 1))
	}
	ExtractionDuration.WithLabelValues(r.backend, label).Observe(duration.Seconds())
}

// RecordPageOutcome records a terminal page status.
func (r *Recorder) RecordPageOutcome(status string) {
	if r == nil {
		return
	}
	PageOutcomes.WithLabelValues(status).Inc()
}

// RecordRun records a finished pipeline run.
func (r *Recorder) RecordRun(status string, duration time.Duration) {
	if r == nil {
		return
	}
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRateLimit counts a rate-limit response.
func (r *Recorder) RecordRateLimit() {
	if r == nil {
		return
	}
	RateLimitHits.Inc()
}
