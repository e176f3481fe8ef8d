package submitguard

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
)

// Window is how long a form stays marked as submitting.
const Window = 3000 * time.Millisecond

const (
	// FormField is the hidden input naming a form.
	FormField = "_form"
	// FormHeader names a form for script-driven submissions.
	FormHeader = "X-Form-Key"
	// ClientCookie scopes form keys to one browser.
	ClientCookie = "fg_client"

	rejectedMessage = "This form is already being submitted. Please wait a moment."
)

// Guard decides whether a submission may proceed.
type Guard struct {
	store   Store
	window  time.Duration
	log     *slog.Logger
	metrics *Metrics
	form    func(r *http.Request) string
	client  func(r *http.Request) string
	toasts  func(r *http.Request) *toast.Manager
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMetrics records guard outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithWindow overrides Window.
func WithWindow(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClient replaces how the submitting client is identified.
func WithClient(fn func(r *http.Request) string) Option {
	return func(g *Guard) {
		if fn != nil {
			g.client = fn
		}
	}
}

// WithFormKey replaces how the submitted form is identified.
func WithFormKey(fn func(r *http.Request) string) Option {
	return func(g *Guard) {
		if fn != nil {
			g.form = fn
		}
	}
}

// WithToasts shows a warning on the manager returned for a rejected request.
// fn may return nil.
func WithToasts(fn func(r *http.Request) *toast.Manager) Option {
	return func(g *Guard) { g.toasts = fn }
}

// New creates a guard on store.
func New(store Store, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		window: Window,
		log:    slog.Default(),
		form:   FormName,
		client: ClientID,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Begin marks key as submitting and reports whether the submission may go
// ahead. Store failures let the submission through.
func (g *Guard) Begin(ctx context.Context, key string) bool {
	ok, err := g.store.Mark(ctx, key, g.window)
	if err != nil {
		g.log.ErrorContext(ctx, "submission guard store failed", logger.FormKey(key), logger.Error(err))
		return true
	}
	g.metrics.observe(ok)
	if !ok {
		g.log.WarnContext(ctx, "duplicate submission rejected", logger.FormKey(key))
	}
	return ok
}

// Key identifies the form submitted by r.
func (g *Guard) Key(r *http.Request) string {
	return g.client(r) + "|" + g.form(r)
}

// Middleware guards unsafe methods. A duplicate is answered with 409 and
// never reaches next.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if g.Begin(r.Context(), g.Key(r)) {
			next.ServeHTTP(w, r)
			return
		}
		if g.toasts != nil {
			g.toasts(r).Warning(r.Context(), rejectedMessage)
		}
		http.Error(w, "submission already in progress", http.StatusConflict)
	})
}

// FormName reads the form name from the X-Form-Key header or the _form
// field, falling back to "METHOD path".
func FormName(r *http.Request) string {
	if v := r.Header.Get(FormHeader); v != "" {
		return v
	}
	if v := r.PostFormValue(FormField); v != "" {
		return v
	}
	return r.Method + " " + r.URL.Path
}

// ClientID reads the fg_client cookie, falling back to the remote host.
func ClientID(r *http.Request) string {
	if c, err := r.Cookie(ClientCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
