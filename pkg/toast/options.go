package toast

import (
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records counters in mt.
func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithPolicy replaces the sanitizing policy applied to messages.
func WithPolicy(p *bluemonday.Policy) Option {
	return func(m *Manager) {
		if p != nil {
			m.policy = p
		}
	}
}

// WithDismissURL makes the close button post to url(id) instead of removing
// the element client-side only.
func WithDismissURL(url func(id string) string) Option {
	return func(m *Manager) { m.dismissURL = url }
}

// WithIDGenerator replaces the ULID generator.
func WithIDGenerator(gen func(now time.Time) string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithTransitionHook is called after every committed transition, under the
// manager lock. It must not call back into the manager.
func WithTransitionHook(fn func(n Notification, from State)) Option {
	return func(m *Manager) { m.hook = fn }
}
