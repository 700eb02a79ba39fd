package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsage",
			Name:      "ingest_documents_total",
			Help:      "Documents processed by the ingestion pipeline",
		},
		[]string{"status"}, // ok / skipped / error
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docsage",
			Name:      "ingest_chunks_total",
			Help:      "Chunks embedded and written to the index",
		},
	)

	AskRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsage",
			Name:      "ask_requests_total",
			Help:      "Questions answered by the retrieval orchestrator",
		},
		[]string{"status"}, // ok / error
	)

	AskMatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docsage",
			Name:      "ask_matches_total",
			Help:      "Chunks retrieved as context for questions",
		},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsage",
			Name:      "generation_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model", "status"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion and retrieval metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(AskRequestsTotal)
	prometheus.MustRegister(AskMatchesTotal)
	prometheus.MustRegister(GenerationDuration)
	pipelineMetricsRegistered = true
}
