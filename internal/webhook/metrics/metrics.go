package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for webhook reconciliation.
type Metrics struct {
	DeliveriesReceived   *prometheus.CounterVec
	DeliveriesRejected   *prometheus.CounterVec
	StatusTransitions    *prometheus.CounterVec
	DuplicateDeliveries  *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	ReconcileLatency     *prometheus.HistogramVec
}

// New registers and returns webhook metrics collectors.
func New() *Metrics {
	return &Metrics{
		DeliveriesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_webhook_deliveries_total",
			Help: "Total number of vendor webhook deliveries received, labeled by provider",
		}, []string{"provider"}),
		DeliveriesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_webhook_deliveries_rejected_total",
			Help: "Total number of rejected webhook deliveries, labeled by provider and reason",
		}, []string{"provider", "reason"}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_webhook_status_transitions_total",
			Help: "Total number of payment status transitions performed by reconciliation, labeled by provider and status",
		}, []string{"provider", "status"}),
		DuplicateDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_webhook_duplicate_deliveries_total",
			Help: "Total number of deliveries acknowledged without a transition because the payment was already terminal",
		}, []string{"provider"}),
		NotificationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_webhook_notification_failures_total",
			Help: "Total number of failed tenant callback notifications, labeled by provider",
		}, []string{"provider"}),
		ReconcileLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabhq_webhook_reconcile_latency_seconds",
			Help:    "Latency of webhook reconciliation including the authoritative vendor check, labeled by provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
	}
}

func (m *Metrics) IncrementDeliveries(provider string) {
	m.DeliveriesReceived.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementRejected(provider, reason string) {
	m.DeliveriesRejected.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) IncrementTransitions(provider, status string) {
	m.StatusTransitions.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) IncrementDuplicates(provider string) {
	m.DuplicateDeliveries.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementNotificationFailures(provider string) {
	m.NotificationFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveReconcileLatency(provider string, durationSeconds float64) {
	m.ReconcileLatency.WithLabelValues(provider).Observe(durationSeconds)
}
