// Package metrics exports sorting metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

const namespace = "face_sorter"

// Exporter records per-image and per-face results of sorting runs.
// It implements sorter.Observer.
type Exporter struct {
	registry *prometheus.Registry

	images        *prometheus.CounterVec
	faces         *prometheus.CounterVec
	rescues       *prometheus.CounterVec
	similarity    prometheus.Histogram
	imageDuration *prometheus.HistogramVec
	activeRuns    prometheus.Gauge
}

// NewExporter creates an exporter with its own registry.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{registry: registry}

	e.images = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Images processed by status (matched, unknown, no_faces, failed)",
		},
		[]string{"status"},
	)

	e.faces = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_total",
			Help:      "Gated faces by outcome, plus low quality drops",
		},
		[]string{"outcome"},
	)

	e.rescues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rescue_steps_total",
			Help:      "Rescue attempts by final step",
		},
		[]string{"step"},
	)

	e.similarity = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_similarity",
			Help:      "Cosine similarity of the best initial match per face",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.35, 0.4, 0.45, 0.5, 0.6, 0.7, 0.8, 1},
		},
	)

	e.imageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_duration_seconds",
			Help:      "Time spent deciding and routing one image",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"profile"},
	)

	e.activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of sorting runs in progress",
		},
	)

	registry.MustRegister(e.images, e.faces, e.rescues, e.similarity, e.imageDuration, e.activeRuns)
	return e
}

// ImageProcessed records a decided image.
func (e *Exporter) ImageProcessed(outcome facematch.ImageOutcome, elapsed time.Duration) {
	e.images.WithLabelValues(string(outcome.Status())).Inc()
	e.imageDuration.WithLabelValues(string(outcome.Profile)).Observe(elapsed.Seconds())

	if outcome.LowQualityFaces > 0 {
		e.faces.WithLabelValues("low_quality").Add(float64(outcome.LowQualityFaces))
	}
	for _, f := range outcome.Faces {
		e.faces.WithLabelValues(string(f.Kind)).Inc()
		if f.Initial.Found() {
			e.similarity.Observe(f.Initial.Similarity)
		}
		if f.Rescue != nil {
			e.rescues.WithLabelValues(string(f.Rescue.Step)).Inc()
		}
	}
}

// ImageFailed records an image that could not be read or detected.
func (e *Exporter) ImageFailed() {
	e.images.WithLabelValues("failed").Inc()
}

// RunStarted increments the active runs gauge.
func (e *Exporter) RunStarted() {
	e.activeRuns.Inc()
}

// RunFinished decrements the active runs gauge.
func (e *Exporter) RunFinished() {
	e.activeRuns.Dec()
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
