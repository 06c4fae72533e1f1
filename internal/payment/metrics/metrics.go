package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for payment orchestration.
type Metrics struct {
	PaymentsCreated      *prometheus.CounterVec
	PaymentCreateLatency *prometheus.HistogramVec
	RefundsProcessed     *prometheus.CounterVec
	VendorErrors         *prometheus.CounterVec
}

// New registers and returns payment metrics collectors.
func New() *Metrics {
	return &Metrics{
		PaymentsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_payments_created_total",
			Help: "Total number of payments initiated, labeled by provider",
		}, []string{"provider"}),
		PaymentCreateLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabhq_payment_create_latency_seconds",
			Help:    "Latency of payment initiation including the vendor call, labeled by provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		RefundsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_refunds_processed_total",
			Help: "Total number of refunds processed, labeled by provider",
		}, []string{"provider"}),
		VendorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_vendor_errors_total",
			Help: "Total number of upstream vendor failures, labeled by provider and operation",
		}, []string{"provider", "operation"}),
	}
}

func (m *Metrics) IncrementPaymentsCreated(provider string) {
	m.PaymentsCreated.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveCreateLatency(provider string, durationSeconds float64) {
	m.PaymentCreateLatency.WithLabelValues(provider).Observe(durationSeconds)
}

func (m *Metrics) IncrementRefundsProcessed(provider string) {
	m.RefundsProcessed.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementVendorErrors(provider, operation string) {
	m.VendorErrors.WithLabelValues(provider, operation).Inc()
}
