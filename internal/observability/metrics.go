package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsql_http_requests_total",
			Help: "Total number of HTTP requests by matched route pattern.",
		},
		[]string{"method", "route", "status"},
	)
	// Buckets reach the default question timeout.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsql_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)
	httpResponseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsql_http_response_bytes",
			Help:    "Size of HTTP response bodies by route.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"route"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsql_uploads_total",
			Help: "Total number of uploads by result (ok, rejected).",
		},
		[]string{"result"},
	)
	uploadRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetsql_upload_rows",
			Help:    "Number of data rows in accepted uploads.",
			Buckets: []float64{10, 100, 1000, 10000, 50000, 100000, 200000},
		},
	)
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsql_questions_total",
			Help: "Total number of answered questions by outcome (table, read, translate, execute).",
		},
		[]string{"outcome"},
	)
	questionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetsql_question_duration_seconds",
			Help:    "End-to-end latency of a question, from relation build to result.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsql_stage_duration_seconds",
			Help:    "Latency of each pipeline stage (load, translate, execute).",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetsql_active_sessions",
			Help: "Current number of live upload sessions.",
		},
	)
	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsql_sessions_expired_total",
			Help: "Total number of sessions evicted after their idle TTL.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpResponseBytes,
		uploadsTotal,
		uploadRows,
		questionsTotal,
		questionDurationSeconds,
		stageDurationSeconds,
		activeSessions,
		sessionsExpiredTotal,
	)
}

func ObserveUpload(accepted bool, rows int) {
	if !accepted {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	uploadRows.Observe(float64(rows))
}

func ObserveQuestion(outcome string, elapsed time.Duration) {
	questionsTotal.WithLabelValues(outcome).Inc()
	questionDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func SetActiveSessions(n int) {
	if n < 0 {
		n = 0
	}
	activeSessions.Set(float64(n))
}

func AddExpiredSessions(n int) {
	if n > 0 {
		sessionsExpiredTotal.Add(float64(n))
	}
}
