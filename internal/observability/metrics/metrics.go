package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymentsportal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paymentsportal_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymentsportal_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymentsportal_transaction_transitions_total",
		Help: "Transaction state changes by target status and result",
	}, []string{"to", "result"})

	transactionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paymentsportal_transactions_created_total",
		Help: "Transactions created by customers",
	})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paymentsportal_transactions_by_status",
		Help: "Number of transactions currently in each lifecycle status",
	}, []string{"status"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymentsportal_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"scope"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymentsportal_events_published_total",
		Help: "Lifecycle events handed to the broker by result",
	}, []string{"type", "result"})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paymentsportal_queue_stream_clients",
		Help: "Connected queue stream subscribers",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin counts a login attempt; result is success, invalid or disabled.
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveTransition counts an attempted move to status to.
func ObserveTransition(to, result string, n int) {
	if n <= 0 {
		return
	}
	transitions.WithLabelValues(to, result).Add(float64(n))
}

func ObserveTransactionCreated() {
	transactionsCreated.Inc()
}

// SetQueueDepth sets the per-status gauge.
func SetQueueDepth(status string, count int) {
	if count < 0 {
		count = 0
	}
	queueDepth.WithLabelValues(status).Set(float64(count))
}

func ObserveRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

func ObserveEventPublished(eventType, result string) {
	eventsPublished.WithLabelValues(eventType, result).Inc()
}

func StreamClientConnected() {
	streamClients.Inc()
}

func StreamClientDisconnected() {
	streamClients.Dec()
}
