package datasets

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts sample parsing per dataset. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Parsed   *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Atoms    *prometheus.HistogramVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Parsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystalsets",
			Name:      "samples_parsed_total",
			Help:      "Samples parsed successfully.",
		}, []string{"dataset"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystalsets",
			Name:      "sample_failures_total",
			Help:      "Records that failed to parse.",
		}, []string{"dataset"}),
		Atoms: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crystalsets",
			Name:      "sample_atoms",
			Help:      "Atoms per parsed sample.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"dataset"}),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Parsed, m.Failures, m.Atoms} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observe(dataset string, s *Sample, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Failures.WithLabelValues(dataset).Inc()
		return
	}
	m.Parsed.WithLabelValues(dataset).Inc()
	m.Atoms.WithLabelValues(dataset).Observe(float64(s.NumAtoms))
}
