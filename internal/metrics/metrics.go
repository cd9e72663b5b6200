// Package metrics provides Prometheus metrics for media-extractor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediaextractor"

// Outcome labels
const (
	OutcomeFound  = "found"
	OutcomeNone   = "none"
	OutcomeError  = "error"
	OutcomeCached = "cached"
)

var (
	// ResolutionsTotal counts main-image resolutions by outcome and winning source.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of main-image resolutions",
		},
		[]string{"outcome", "source"},
	)

	// CandidatesPerPage observes how many metadata candidates a page declares.
	CandidatesPerPage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_per_page",
			Help:      "Distribution of image candidates found per page",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
	)

	// BrowserRendersTotal counts headless-browser fallbacks.
	BrowserRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "browser_renders_total",
			Help:      "Total number of headless browser renders",
		},
		[]string{"outcome"},
	)

	// BatchSize observes batch sizes.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Distribution of batch sizes",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// HTTPRequestDuration measures API request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// RecordResolution records one resolution. source is empty when no image was found.
func RecordResolution(outcome, source string, candidates int) {
	ResolutionsTotal.WithLabelValues(outcome, source).Inc()
	if outcome == OutcomeFound || outcome == OutcomeNone {
		CandidatesPerPage.Observe(float64(candidates))
	}
}

// RecordBrowserRender records a browser fallback.
func RecordBrowserRender(outcome string) {
	BrowserRendersTotal.WithLabelValues(outcome).Inc()
}

// RecordBatch records a batch submission.
func RecordBatch(size int) {
	BatchSize.Observe(float64(size))
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}
