package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsql_llm_requests_total",
			Help: "Total number of LLM translation requests by provider and outcome.",
		},
		[]string{"provider", "status"},
	)
	llmLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlsql_llm_latency_ms",
			Help:    "LLM translation latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		},
		[]string{"provider"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsql_query_executions_total",
			Help: "Total number of generated queries executed against target databases.",
		},
		[]string{"dialect", "status"},
	)
	queryLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nlsql_query_latency_ms",
			Help:    "Target database execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"dialect"},
	)
	historyWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsql_history_writes_total",
			Help: "Total number of history append attempts.",
		},
		[]string{"status"},
	)
	archiveUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsql_archive_uploads_total",
			Help: "Total number of result archive uploads.",
		},
		[]string{"status"},
	)
)

func ObserveLLMRequest(provider string, elapsed time.Duration, err error) {
	llmRequestsTotal.WithLabelValues(provider, outcome(err)).Inc()
	llmLatencyMs.WithLabelValues(provider).Observe(float64(elapsed.Milliseconds()))
}

func ObserveQueryExecution(dialect string, elapsed time.Duration, err error) {
	queryExecutionsTotal.WithLabelValues(dialect, outcome(err)).Inc()
	queryLatencyMs.WithLabelValues(dialect).Observe(float64(elapsed.Milliseconds()))
}

func ObserveHistoryWrite(err error) {
	historyWritesTotal.WithLabelValues(outcome(err)).Inc()
}

func ObserveArchiveUpload(err error) {
	archiveUploadsTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
