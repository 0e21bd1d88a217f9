// Package metrics exposes Prometheus counters for the capture and export
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scans counts OCR scans by backend outcome ("ok" or "error").
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bonnetjes",
		Name:      "scans_total",
		Help:      "Receipt scans by result.",
	}, []string{"result"})

	// Uploads counts bulk upload items by outcome ("saved", "failed", "skipped").
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bonnetjes",
		Name:      "bulk_upload_items_total",
		Help:      "Bulk upload items by result.",
	}, []string{"result"})

	// Exports counts generated export documents by format.
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bonnetjes",
		Name:      "exports_total",
		Help:      "Generated export documents by format.",
	}, []string{"format"})

	// Submissions counts month submissions by result.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bonnetjes",
		Name:      "submissions_total",
		Help:      "Month submissions by result.",
	}, []string{"result"})

	// OCRDuration observes how long a single backend scan takes.
	OCRDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bonnetjes",
		Name:      "ocr_duration_seconds",
		Help:      "Duration of OCR backend calls.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
