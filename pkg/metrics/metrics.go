// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	InferencesTotal      *prometheus.CounterVec
	InferenceLatency     *prometheus.HistogramVec
	InferenceTopicCount  prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsProcessedTotal   *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	VocabularySize       prometheus.Gauge
	CorpusDocuments      prometheus.Gauge
	TopicCount           prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		InferencesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topic_inferences_total",
				Help: "Total topic inference calls by outcome (ok, empty, error).",
			},
			[]string{"outcome"},
		),
		InferenceLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "topic_inference_latency_seconds",
				Help:    "Topic inference latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		InferenceTopicCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "topic_inference_topics_returned",
				Help:    "Number of topics above the pruning threshold per inference.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of response cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of response cache misses.",
			},
		),
		DocsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_docs_processed_total",
				Help: "Documents processed by each pipeline stage.",
			},
			[]string{"stage"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Wall-clock duration of each pipeline stage.",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
			},
			[]string{"stage"},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocabulary_size",
				Help: "Number of terms in the frozen vocabulary.",
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_documents",
				Help: "Number of documents in the loaded corpus.",
			},
		),
		TopicCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "topic_model_topics",
				Help: "Number of topics in the loaded model.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.InferencesTotal,
		m.InferenceLatency,
		m.InferenceTopicCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsProcessedTotal,
		m.StageDuration,
		m.VocabularySize,
		m.CorpusDocuments,
		m.TopicCount,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
