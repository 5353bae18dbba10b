package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	DecayRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mastery_decay_records_total",
			Help: "Mastery records visited by decay runs, by outcome",
		},
		[]string{"outcome"}, // decayed, unchanged, skipped, failed
	)

	DecayRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mastery_decay_run_duration_seconds",
			Help:    "Duration of complete decay runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	GenerationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_generation_requests_total",
			Help: "Content generation requests, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	GenerationDroppedQuestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_generation_dropped_questions_total",
			Help: "Generated questions discarded during validation",
		},
		[]string{"kind"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Calls to the generation backend, by model, purpose and outcome",
		},
		[]string{"model", "purpose", "outcome"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Latency of calls to the generation backend",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"model", "purpose"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens consumed by the generation backend",
		},
		[]string{"model", "direction"},
	)

	ContentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_transitions_total",
			Help: "Content lifecycle transitions, by kind and target status",
		},
		[]string{"kind", "status"},
	)

	DocumentUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_uploads_total",
			Help: "Document uploads, by outcome",
		},
		[]string{"outcome"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			DecayRecords,
			DecayRunDuration,
			GenerationRequests,
			GenerationDroppedQuestions,
			LLMRequests,
			LLMLatency,
			LLMTokens,
			ContentTransitions,
			DocumentUploads,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
