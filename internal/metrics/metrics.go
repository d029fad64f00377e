// Package metrics defines the Prometheus collectors exported by the API server
// and the worker. All collectors live on the default registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "investly"

// AuthAttemptsTotal counts signin/signup attempts.
// Labels:
//   - action: "signin" or "signup"
//   - result: "success", "invalid", "inactive", "conflict", "rate_limited", "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts by action and result.",
	},
	[]string{"action", "result"},
)

// InvestmentsCreatedTotal counts new user plans, by plan name.
var InvestmentsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "investments_created_total",
		Help:      "Total number of investments created, by plan.",
	},
	[]string{"plan"},
)

// InvestmentsSettledTotal counts user plans paid out at maturity.
var InvestmentsSettledTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "investments_settled_total",
		Help:      "Total number of matured investments settled.",
	},
)

// UploadsTotal counts upload attempts by result ("stored", "rejected", "error").
var UploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Total number of file uploads by result.",
	},
	[]string{"result"},
)

// HTTPRequestDuration measures request latency by route and status.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// GinMiddleware records HTTPRequestDuration for every request.
// Unmatched routes are recorded as "unmatched" to keep label cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
