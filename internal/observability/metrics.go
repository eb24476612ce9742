package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	essaySubmissionsTotal *prometheus.CounterVec
	feedbackEmailsTotal   *prometheus.CounterVec
	creditEventsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essaypilot_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "essaypilot_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essaypilot_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		essaySubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essaypilot_essay_submissions_total",
			Help: "Essay submissions by terminal outcome.",
		}, []string{"outcome"})

		feedbackEmailsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essaypilot_feedback_emails_total",
			Help: "Feedback notification emails by delivery status.",
		}, []string{"status"})

		creditEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essaypilot_credit_events_total",
			Help: "Credit ledger mutations by kind.",
		}, []string{"kind"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			essaySubmissionsTotal,
			feedbackEmailsTotal,
			creditEventsTotal,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EssaySubmissions exposes the counter for submission outcomes.
func EssaySubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return essaySubmissionsTotal
}

// FeedbackEmails exposes the counter for notification deliveries.
func FeedbackEmails() *prometheus.CounterVec {
	RegisterMetrics()
	return feedbackEmailsTotal
}

// CreditEvents exposes the counter for ledger mutations.
func CreditEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return creditEventsTotal
}
