// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pesapal-proxy/internal/models"
)

var (
	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesapal_gateway_requests_total",
		Help: "Outbound gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	gatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pesapal_gateway_request_duration_seconds",
		Help:    "Outbound gateway call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ipnNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesapal_ipn_notifications_total",
		Help: "IPN deliveries by processing outcome. Every delivery is acknowledged with 200.",
	}, []string{"outcome"})

	paymentStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesapal_payment_status_total",
		Help: "Classified payment statuses observed via poll or push.",
	}, []string{"status", "source"})

	statusMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pesapal_status_mismatch_total",
		Help: "Observations that disagreed with a recorded terminal status.",
	})
)

// Gateway call outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
	OutcomeNetwork  = "network_error"
)

// IPN processing outcomes
const (
	IPNHandled   = "handled"
	IPNDuplicate = "duplicate"
	IPNMalformed = "malformed"
	IPNFailed    = "failed"
	IPNPanic     = "panic"
)

func ObserveGatewayCall(operation, outcome string, elapsed time.Duration) {
	gatewayRequests.WithLabelValues(operation, outcome).Inc()
	gatewayDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func IncIPN(outcome string) {
	ipnNotifications.WithLabelValues(outcome).Inc()
}

func IncPaymentStatus(status models.PaymentStatus, source models.ObservationSource) {
	paymentStatus.WithLabelValues(string(status), string(source)).Inc()
}

func IncStatusMismatch() {
	statusMismatches.Inc()
}
