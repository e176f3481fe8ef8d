package submitguard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts guard decisions. A nil *Metrics records nothing.
type Metrics struct {
	rejected prometheus.Counter
	accepted prometheus.Counter
}

// NewMetrics registers the guard counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "submitguard_rejected_total",
			Help: "Submissions rejected because the form was already submitting.",
		}),
		accepted: f.NewCounter(prometheus.CounterOpts{
			Name: "submitguard_accepted_total",
			Help: "Submissions let through and marked as submitting.",
		}),
	}
}

// Rejected exposes submitguard_rejected_total.
func (m *Metrics) Rejected() prometheus.Counter { return m.rejected }

// Accepted exposes submitguard_accepted_total.
func (m *Metrics) Accepted() prometheus.Counter { return m.accepted }

func (m *Metrics) observe(ok bool) {
	switch {
	case m == nil:
	case ok:
		m.accepted.Inc()
	default:
		m.rejected.Inc()
	}
}
