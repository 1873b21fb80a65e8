package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every nimbuscdn metric plus Go runtime collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	nodeExecutions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbuscdn_node_executions_total",
			Help: "Total node executions by node type, operation and status",
		},
		[]string{"node_type", "operation", "status"},
	)

	nodeExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nimbuscdn_node_execution_duration_seconds",
			Help:    "Duration of node executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node_type", "operation"},
	)

	nodeErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbuscdn_node_errors_total",
			Help: "Total failed node executions by error code",
		},
		[]string{"node_type", "code"},
	)

	// HTTPRequests counts server requests. Labels: method, route, code.
	HTTPRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbuscdn_http_requests_total",
			Help: "Total HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Execution status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RecordNodeExecution records one node execution. code is only used for
// failed executions.
func RecordNodeExecution(nodeType, operation string, d time.Duration, code string) {
	status := StatusSuccess
	if code != "" {
		status = StatusError
		nodeErrors.WithLabelValues(nodeType, code).Inc()
	}
	nodeExecutions.WithLabelValues(nodeType, operation, status).Inc()
	nodeExecutionDuration.WithLabelValues(nodeType, operation).Observe(d.Seconds())
}

// RecordHTTPRequest counts one served HTTP request.
func RecordHTTPRequest(method, route, code string) {
	HTTPRequests.WithLabelValues(method, route, code).Inc()
}

// MetricsHandler serves Registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
