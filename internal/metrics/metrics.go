package metrics

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
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Exam sessions created, by mode",
		},
		[]string{"mode"},
	)

	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_finished_total",
			Help: "Exam sessions that reached a terminal state, by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_answers_submitted_total",
			Help: "Answers submitted, by correctness",
		},
		[]string{"correct"},
	)

	HintsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_hints_granted_total",
			Help: "Hints handed out across all sessions",
		},
	)

	ActiveTimers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_active_timers",
			Help: "Countdowns currently running or paused",
		},
	)

	ScorePercentage = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_score_percentage",
			Help:    "Final score percentage of completed sessions",
			Buckets: []float64{50, 60, 70, 80, 90, 100},
		},
		[]string{"exam_type"},
	)

	initOnce sync.Once
)

// Init registers every collector with the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionsStarted,
			SessionsFinished,
			AnswersSubmitted,
			HintsGranted,
			ActiveTimers,
			ScorePercentage,
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
	return gin.WrapH(promhttp.Handler())
}
