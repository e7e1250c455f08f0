package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlsql_http_requests_total",
			Help: "Total number of HTTP requests by route and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "nlsql_http_request_duration_seconds",
			Help: "HTTP request latency by route. Question routes include the LLM round trip.",
			// Question routes wait on the LLM and the target database, so the tail is long.
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"method", "path", "status"},
	)
	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nlsql_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpRequestsInFlight,
		llmRequestsTotal,
		llmLatencyMs,
		queryExecutionsTotal,
		queryLatencyMs,
		historyWritesTotal,
		archiveUploadsTotal,
	)
}

func observeHTTPRequest(method, path string, status int, elapsed time.Duration) {
	route := routeLabel(path)
	code := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

// routeLabel keeps label cardinality bounded: history ids become {id} and static
// asset names become {file}.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/ui/static/") {
		return "/ui/static/{file}"
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if _, err := strconv.ParseInt(segment, 10, 64); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
