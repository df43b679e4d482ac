// Package metrics defines the Prometheus collectors for the web shell and
// exposes a handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	DocumentsLoaded     *prometheus.CounterVec
	ChunksIndexed       prometheus.Counter
	QuestionsTotal      *prometheus.CounterVec
	AnswerLatency       prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docqa_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docqa_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "route"},
		),
		DocumentsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docqa_documents_loaded_total",
				Help: "Document loads by result (ok, error).",
			},
			[]string{"result"},
		),
		ChunksIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docqa_chunks_indexed_total",
				Help: "Total number of chunks embedded and indexed.",
			},
		),
		QuestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docqa_questions_total",
				Help: "Questions by result (ok, empty_index, embedding_error, generation_error, error).",
			},
			[]string{"result"},
		),
		AnswerLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docqa_answer_latency_seconds",
				Help:    "Time from question to answer, retrieval included.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DocumentsLoaded,
		m.ChunksIndexed,
		m.QuestionsTotal,
		m.AnswerLatency,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
