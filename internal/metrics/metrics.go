// Package metrics provides Prometheus instrumentation for the risk
// engine and its HTTP surface.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveil",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surveil",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// InferencesTotal counts risk calculations by typology and resulting
	// risk level.
	InferencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveil",
			Name:      "inferences_total",
			Help:      "Total risk calculations by typology and risk level.",
		},
		[]string{"typology", "risk_level"},
	)

	// InferenceErrorsTotal counts failed risk calculations by typology.
	InferenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveil",
			Name:      "inference_errors_total",
			Help:      "Total failed risk calculations by typology.",
		},
		[]string{"typology"},
	)

	// InferenceDuration observes risk calculation latency by typology.
	InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surveil",
			Name:      "inference_duration_seconds",
			Help:      "Risk calculation duration in seconds.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
		[]string{"typology"},
	)

	// EvidenceCompleteness observes the fraction of required evidence
	// nodes observed per calculation.
	EvidenceCompleteness = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surveil",
			Name:      "evidence_completeness_ratio",
			Help:      "Fraction of required evidence nodes observed per calculation.",
			Buckets:   []float64{0, 0.17, 0.33, 0.5, 0.67, 0.83, 1},
		},
		[]string{"typology"},
	)

	// ModelsReady tracks the number of typology models currently serving.
	ModelsReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "surveil", Name: "models_ready",
		Help: "Number of typology models assembled and ready.",
	})

	// RegistryReloadsTotal counts probability registry hot reloads.
	RegistryReloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "surveil", Name: "registry_reloads_total",
		Help: "Total probability registry hot reloads.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		InferencesTotal,
		InferenceErrorsTotal,
		InferenceDuration,
		EvidenceCompleteness,
		ModelsReady,
		RegistryReloadsTotal,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
