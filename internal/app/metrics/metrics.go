package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for API key operations.
type Metrics struct {
	KeysRotated        prometheus.Counter
	KeyValidations     *prometheus.CounterVec
	KeyRotationLatency prometheus.Histogram
}

// New registers and returns API key metrics collectors.
func New() *Metrics {
	return &Metrics{
		KeysRotated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tabhq_api_keys_rotated_total",
			Help: "Total number of API key rotations",
		}),
		KeyValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_api_key_validations_total",
			Help: "Total number of API key validation attempts, labeled by outcome",
		}, []string{"outcome"}),
		KeyRotationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabhq_api_key_rotation_latency_seconds",
			Help:    "Latency of API key rotation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementKeysRotated() {
	m.KeysRotated.Inc()
}

func (m *Metrics) IncrementKeyValidation(outcome string) {
	m.KeyValidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRotationLatency(durationSeconds float64) {
	m.KeyRotationLatency.Observe(durationSeconds)
}
