package toast

import (
	"cmp"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/CallMeMhz/feature-gating/pkg/cache"
	"github.com/CallMeMhz/feature-gating/pkg/clock"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/recovery"
	"github.com/CallMeMhz/feature-gating/pkg/statemachine"
)

var ErrNotificationNotFound = errors.New("toast: notification not found")

// removedMemory bounds how many removed ids a manager remembers. A removed id
// is never adopted again.
const removedMemory = 1024

// Manager owns the notifications of one container.
type Manager struct {
	container  Container
	sched      clock.Scheduler
	log        *slog.Logger
	policy     *bluemonday.Policy
	metrics    *Metrics
	dismissURL func(id string) string
	newID      func(now time.Time) string
	hook       func(n Notification, from State)
	lifecycle  []statemachine.TransitionDef

	mu      sync.Mutex
	seq     uint64
	live    map[string]*tracked
	removed *cache.LRU[string, struct{}]
}

type tracked struct {
	n   Notification
	seq uint64
	fsm statemachine.StateMachine
}

// NewManager creates a manager for container. A nil container is allowed:
// every Show then logs the missing container and does nothing. A nil
// scheduler means the wall clock.
func NewManager(container Container, sched clock.Scheduler, opts ...Option) *Manager {
	if sched == nil {
		sched = clock.NewReal()
	}
	m := &Manager{
		container: container,
		sched:     sched,
		log:       slog.Default(),
		policy:    bluemonday.UGCPolicy(),
		newID:     newULID,
		live:      make(map[string]*tracked),
		removed:   cache.New[string, struct{}](removedMemory),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("toast"))

	detach := []statemachine.Action{m.detach}
	m.lifecycle = []statemachine.TransitionDef{
		{From: Entering, To: Visible, Event: eventReveal, Actions: []statemachine.Action{m.restyle(StyleShown)}},
		{From: Visible, To: Exiting, Event: eventExpire, Actions: []statemachine.Action{m.restyle(StyleHidden)}},
		{From: Exiting, To: Removed, Event: eventDetach, Actions: detach},
		{From: Entering, To: Removed, Event: eventDismiss, Actions: detach},
		{From: Visible, To: Removed, Event: eventDismiss, Actions: detach},
		{From: Exiting, To: Removed, Event: eventDismiss, Actions: detach},
	}
	return m
}

// Container returns the managed container, nil when missing.
func (m *Manager) Container() Container {
	return m.container
}

// Show appends a notification and starts its lifecycle. Unknown categories
// render as info. When the container is missing the call is logged and
// nothing else happens; ok reports whether a notification was shown.
func (m *Manager) Show(ctx context.Context, message string, category Category) (n Notification, ok bool) {
	if m == nil {
		return Notification{}, false
	}
	if m.container == nil {
		m.metrics.incContainerMissing()
		m.log.ErrorContext(ctx, "toast container not found", logger.Category(string(category)))
		return Notification{}, false
	}

	now := m.sched.Now()
	n = Notification{
		ID:        m.newID(now),
		Message:   m.policy.Sanitize(message),
		Category:  ParseCategory(string(category)),
		CreatedAt: now,
		State:     Entering,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.container.Append(ctx, m.element(n, StyleHidden)); err != nil {
		m.log.ErrorContext(ctx, "toast append failed", logger.NotificationID(n.ID), logger.Error(err))
		return Notification{}, false
	}
	m.start(ctx, n)
	m.metrics.incShown(n.Category)
	m.log.DebugContext(ctx, "toast shown", logger.NotificationID(n.ID), logger.Category(string(n.Category)))
	return n, true
}

// Info shows an info notification.
func (m *Manager) Info(ctx context.Context, message string) (Notification, bool) {
	return m.Show(ctx, message, CategoryInfo)
}

// Success shows a success notification.
func (m *Manager) Success(ctx context.Context, message string) (Notification, bool) {
	return m.Show(ctx, message, CategorySuccess)
}

// Warning shows a warning notification.
func (m *Manager) Warning(ctx context.Context, message string) (Notification, bool) {
	return m.Show(ctx, message, CategoryWarning)
}

// Error shows an error notification.
func (m *Manager) Error(ctx context.Context, message string) (Notification, bool) {
	return m.Show(ctx, message, CategoryError)
}

// Dismiss removes a live notification immediately, without the exit
// animation. Its pending timers still fire and are ignored.
func (m *Manager) Dismiss(ctx context.Context, id string) error {
	if m == nil {
		return ErrNotificationNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.live[id]
	if !ok {
		return ErrNotificationNotFound
	}
	return m.fire(ctx, t, eventDismiss)
}

// Get returns the live notification with the given id.
func (m *Manager) Get(id string) (Notification, bool) {
	if m == nil {
		return Notification{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.live[id]; ok {
		return t.n, true
	}
	return Notification{}, false
}

// Live returns the notifications not yet removed, oldest first.
func (m *Manager) Live() []Notification {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := make([]*tracked, 0, len(m.live))
	for _, t := range m.live {
		ts = append(ts, t)
	}
	slices.SortFunc(ts, func(a, b *tracked) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]Notification, len(ts))
	for i, t := range ts {
		out[i] = t.n
	}
	return out
}

// Rehydrate adopts every element already in the container that the manager
// does not track yet and drives it through the same timeline as a new
// notification. Ids that already reached Removed are skipped, so each id runs
// its lifecycle once. It returns how many elements were adopted.
func (m *Manager) Rehydrate(ctx context.Context) int {
	if m == nil {
		return 0
	}
	if m.container == nil {
		m.metrics.incContainerMissing()
		m.log.ErrorContext(ctx, "toast container not found")
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	children, err := m.container.Children(ctx)
	if err != nil {
		m.log.ErrorContext(ctx, "toast children unavailable", logger.Error(err))
		return 0
	}

	now := m.sched.Now()
	adopted := 0
	for _, e := range children {
		if e.ID == "" {
			m.log.WarnContext(ctx, "toast element without id skipped")
			continue
		}
		if _, ok := m.live[e.ID]; ok {
			continue
		}
		if _, ok := m.removed.Get(e.ID); ok {
			m.log.DebugContext(ctx, "removed toast not adopted again", logger.NotificationID(e.ID))
			continue
		}
		m.start(ctx, Notification{
			ID:        e.ID,
			Message:   m.policy.Sanitize(e.Message),
			Category:  ParseCategory(string(e.Category)),
			CreatedAt: now,
			State:     Entering,
		})
		adopted++
	}
	if adopted > 0 {
		m.log.DebugContext(ctx, "toasts rehydrated", slog.Int("count", adopted))
	}
	return adopted
}

// RehydrateHTML parses toast elements out of a rendered page, places them in
// the container (adopting them when the container supports it) and
// re-hydrates. Elements without an id get one.
func (m *Manager) RehydrateHTML(ctx context.Context, r io.Reader) (int, error) {
	if m == nil {
		return 0, nil
	}
	elements, err := ParseElements(r)
	if err != nil {
		return 0, err
	}
	if m.container == nil {
		return m.Rehydrate(ctx), nil
	}

	place := m.container.Append
	if a, ok := m.container.(Adopter); ok {
		place = a.Adopt
	}
	now := m.sched.Now()
	for _, e := range elements {
		if e.ID == "" {
			e.ID = m.newID(now)
		}
		if _, ok := m.removed.Get(e.ID); ok {
			continue
		}
		e.Message = m.policy.Sanitize(e.Message)
		e.DismissURL = m.dismissURLFor(e.ID)
		if e.Style == (Style{}) {
			e.Style = StyleHidden
		}
		if err := place(ctx, e); err != nil {
			m.log.WarnContext(ctx, "toast element not adopted", logger.NotificationID(e.ID), logger.Error(err))
		}
	}
	return m.Rehydrate(ctx), nil
}

// start registers n and schedules its reveal and expiry. Must be called with
// the lock held.
func (m *Manager) start(ctx context.Context, n Notification) {
	m.seq++
	t := &tracked{n: n, seq: m.seq}
	t.fsm = statemachine.MustNew(Entering,
		statemachine.WithTransitions(m.lifecycle),
		statemachine.WithFinal(Removed),
		statemachine.WithObserver(func(ctx context.Context, from, to statemachine.State, _ statemachine.Event) {
			m.committed(ctx, t, from.(State), to.(State))
		}),
	)
	m.live[n.ID] = t

	ctx = context.WithoutCancel(ctx)
	m.after(ctx, RevealDelay, t, eventReveal)
	m.after(ctx, DwellTime, t, eventExpire)
}

func (m *Manager) after(ctx context.Context, d time.Duration, t *tracked, ev event) {
	m.sched.AfterFunc(d, recovery.Wrap(m.log, "toast", func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		_ = m.fire(ctx, t, ev)
	}))
}

// fire feeds ev to the notification. Events arriving after the notification
// moved past them are dropped. Must be called with the lock held.
func (m *Manager) fire(ctx context.Context, t *tracked, ev event) error {
	err := t.fsm.Fire(ctx, ev, t)
	switch {
	case err == nil:
		if ev == eventExpire {
			m.after(ctx, ExitTime, t, eventDetach)
		}
		return nil
	case statemachine.IsFinalStateError(err), statemachine.IsNoTransitionAvailableError(err):
		m.log.DebugContext(ctx, "toast event ignored",
			logger.NotificationID(t.n.ID), logger.Event(ev.Name()), logger.State(t.n.State.Name()))
		return nil
	default:
		m.log.ErrorContext(ctx, "toast transition failed", logger.NotificationID(t.n.ID), logger.Error(err))
		return err
	}
}

// committed runs inside fire, under the lock.
func (m *Manager) committed(ctx context.Context, t *tracked, from, to State) {
	t.n.State = to
	if to == Removed {
		delete(m.live, t.n.ID)
		m.removed.Put(t.n.ID, struct{}{})
	}
	m.metrics.incTransition(to)
	m.log.DebugContext(ctx, "toast transition",
		logger.NotificationID(t.n.ID), slog.String("from", from.Name()), logger.State(to.Name()))
	if m.hook != nil {
		m.hook(t.n, from)
	}
}

func (m *Manager) restyle(s Style) statemachine.Action {
	return func(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
		t := data.(*tracked)
		if err := m.container.Restyle(ctx, t.n.ID, s); err != nil {
			m.log.WarnContext(ctx, "toast restyle failed", logger.NotificationID(t.n.ID), logger.Error(err))
		}
		return nil
	}
}

func (m *Manager) detach(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	t := data.(*tracked)
	if err := m.container.Remove(ctx, t.n.ID); err != nil {
		m.log.WarnContext(ctx, "toast remove failed", logger.NotificationID(t.n.ID), logger.Error(err))
	}
	return nil
}

func (m *Manager) element(n Notification, s Style) Element {
	return Element{
		ID:         n.ID,
		Category:   n.Category,
		Message:    n.Message,
		Style:      s,
		DismissURL: m.dismissURLFor(n.ID),
	}
}

func (m *Manager) dismissURLFor(id string) string {
	if m.dismissURL == nil {
		return ""
	}
	return m.dismissURL(id)
}

func newULID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
