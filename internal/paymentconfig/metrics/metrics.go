package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for provider credential operations.
type Metrics struct {
	ConfigsSet     *prometheus.CounterVec
	ConfigsRemoved *prometheus.CounterVec
	ConfigLookups  *prometheus.CounterVec
}

// New registers and returns provider config metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConfigsSet: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_provider_configs_set_total",
			Help: "Total number of provider credentials configured, labeled by provider",
		}, []string{"provider"}),
		ConfigsRemoved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_provider_configs_removed_total",
			Help: "Total number of provider credentials deactivated, labeled by provider",
		}, []string{"provider"}),
		ConfigLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tabhq_provider_config_lookups_total",
			Help: "Total number of credential lookups, labeled by provider and outcome",
		}, []string{"provider", "outcome"}),
	}
}

func (m *Metrics) IncrementConfigsSet(provider string) {
	m.ConfigsSet.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementConfigsRemoved(provider string) {
	m.ConfigsRemoved.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementConfigLookup(provider, outcome string) {
	m.ConfigLookups.WithLabelValues(provider, outcome).Inc()
}
