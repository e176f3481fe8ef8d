package toast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts toast activity. A nil *Metrics records nothing.
type Metrics struct {
	shown            *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	containerMissing prometheus.Counter
}

// NewMetrics registers the toast counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		shown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "toast_shown_total",
			Help: "Notifications appended to a container, by category.",
		}, []string{"category"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "toast_transitions_total",
			Help: "Lifecycle transitions, by target state.",
		}, []string{"state"}),
		containerMissing: f.NewCounter(prometheus.CounterOpts{
			Name: "toast_container_missing_total",
			Help: "Show calls aborted because no container was available.",
		}),
	}
}

func (m *Metrics) incShown(c Category) {
	if m != nil {
		m.shown.WithLabelValues(string(c)).Inc()
	}
}

func (m *Metrics) incTransition(s State) {
	if m != nil {
		m.transitions.WithLabelValues(string(s)).Inc()
	}
}

func (m *Metrics) incContainerMissing() {
	if m != nil {
		m.containerMissing.Inc()
	}
}

// Shown exposes toast_shown_total.
func (m *Metrics) Shown() *prometheus.CounterVec { return m.shown }

// Transitions exposes toast_transitions_total.
func (m *Metrics) Transitions() *prometheus.CounterVec { return m.transitions }

// ContainerMissing exposes toast_container_missing_total.
func (m *Metrics) ContainerMissing() prometheus.Counter { return m.containerMissing }
