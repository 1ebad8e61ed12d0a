// Package obsmetrics declares this service's Prometheus collectors,
// mirroring the metric-per-concern style the email-service uses for its
// own outbox/DLQ/retry pipeline.
package obsmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_orders_accepted_total",
		Help: "Total number of orders accepted.",
	})

	ordersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_orders_rejected_total",
		Help: "Total number of rejected order requests, by reason.",
	}, []string{"reason"})

	outboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_outbox_published_total",
		Help: "Total number of outbox rows published successfully.",
	})

	outboxRetryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_outbox_retry_total",
		Help: "Total number of outbox publish attempts scheduled for retry.",
	})

	outboxDeadLetterTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_outbox_dead_letter_total",
		Help: "Total number of outbox rows routed to the dead-letter queue.",
	})

	outboxPublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderflow_outbox_publish_duration_seconds",
		Help:    "Time spent publishing one outbox row to the event bus.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	})

	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orderflow_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half_open).",
	}, []string{"breaker"})

	breakerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_circuit_breaker_failures_total",
		Help: "Total number of failures recorded by a circuit breaker.",
	}, []string{"breaker"})
)

func RecordOrderAccepted() { ordersAcceptedTotal.Inc() }

func RecordOrderRejected(reason string) { ordersRejectedTotal.WithLabelValues(reason).Inc() }

func RecordOutboxPublished(d time.Duration) {
	outboxPublishedTotal.Inc()
	outboxPublishDuration.Observe(d.Seconds())
}

func RecordOutboxRetry() { outboxRetryTotal.Inc() }

func RecordOutboxDeadLetter() { outboxDeadLetterTotal.Inc() }

func SetBreakerState(name string, state int) {
	breakerStateGauge.WithLabelValues(name).Set(float64(state))
}

func RecordBreakerFailure(name string) { breakerFailuresTotal.WithLabelValues(name).Inc() }

// Handler exposes the registered collectors for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
