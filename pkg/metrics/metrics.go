package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lms_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	dbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lms_db_query_duration_seconds",
		Help:    "SQL query latency by operation and table.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation", "table"})

	storeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_record_store_calls_total",
		Help: "Remote record store calls by collection, operation and outcome.",
	}, []string{"collection", "operation", "outcome"})

	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lms_record_store_call_duration_seconds",
		Help:    "Remote record store call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "operation"})

	reconciles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_progress_reconcile_total",
		Help: "Lesson progress reconciliations by operation and outcome.",
	}, []string{"op", "outcome"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lms_active_sessions",
		Help: "Workspaces currently held in memory.",
	})
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordDBQuery observes a single SQL statement.
func RecordDBQuery(operation, table string, elapsed time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
}

// RecordStoreCall observes one call against the remote record store.
func RecordStoreCall(collection, operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeCalls.WithLabelValues(collection, operation, outcome).Inc()
	storeDuration.WithLabelValues(collection, operation).Observe(elapsed.Seconds())
}

// RecordReconcile counts a reconciler outcome such as created, updated, skipped or failed.
func RecordReconcile(op, outcome string) {
	reconciles.WithLabelValues(op, outcome).Inc()
}

// SetActiveSessions publishes the current workspace count.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
