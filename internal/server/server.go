// Package server wires the toast runtime, the submission guard, the snapshot
// viewer and the snapshot API into one HTTP handler.
//
// Every page load gets its own toast manager backed by a StreamContainer.
// The page subscribes to GET /toasts/stream and receives each container
// mutation as a datastar patch. Pages are kept in an LRU; evicting a page
// closes its stream.
package server

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CallMeMhz/feature-gating/internal/config"
	"github.com/CallMeMhz/feature-gating/pkg/cache"
	"github.com/CallMeMhz/feature-gating/pkg/clock"
	"github.com/CallMeMhz/feature-gating/pkg/cookie"
	"github.com/CallMeMhz/feature-gating/pkg/environment"
	"github.com/CallMeMhz/feature-gating/pkg/httpserver"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/recovery"
	"github.com/CallMeMhz/feature-gating/pkg/requestid"
	"github.com/CallMeMhz/feature-gating/pkg/snapshot"
	"github.com/CallMeMhz/feature-gating/pkg/submitguard"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
	"github.com/CallMeMhz/feature-gating/pkg/viewer"
)

// Server holds the application's HTTP state.
type Server struct {
	log       *slog.Logger
	env       environment.Environment
	sched     clock.Scheduler
	pagesCfg  config.Pages
	cookies   *cookie.Manager
	snapshots *snapshot.Service
	viewer    *viewer.Viewer
	guard     *submitguard.Guard
	validate  *validator.Validate
	registry  *prometheus.Registry
	checks    map[string]httpserver.Check

	guardStore   submitguard.Store
	viewerToasts bool
	toastMetrics *toast.Metrics
	pages        *cache.LRU[string, *page]
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEnvironment sets the environment stored in every request context.
func WithEnvironment(env environment.Environment) Option {
	return func(s *Server) { s.env = env }
}

// WithScheduler sets the clock driving toast lifecycles and the in-memory
// guard store.
func WithScheduler(sched clock.Scheduler) Option {
	return func(s *Server) {
		if sched != nil {
			s.sched = sched
		}
	}
}

// WithPages configures the page registry and toast limits.
func WithPages(cfg config.Pages) Option {
	return func(s *Server) { s.pagesCfg = cfg }
}

// WithGuardStore replaces the in-memory submission guard store, e.g. with a
// RedisStore shared between instances.
func WithGuardStore(store submitguard.Store) Option {
	return func(s *Server) { s.guardStore = store }
}

// WithViewer sets the viewer used by POST /snapshots/{id}/view. Without it
// the route answers 503.
func WithViewer(v *viewer.Viewer) Option {
	return func(s *Server) { s.viewer = v }
}

// WithViewerFailureToasts reports failed snapshot views as error toasts on
// the requesting page.
func WithViewerFailureToasts(on bool) Option {
	return func(s *Server) { s.viewerToasts = on }
}

// WithRegistry exposes metrics from reg on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithReadinessCheck adds a named check to /health/ready.
func WithReadinessCheck(name string, check httpserver.Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

// New creates a server over the snapshot service. cookies signs the client
// cookie and encrypts flash toasts.
func New(snapshots *snapshot.Service, cookies *cookie.Manager, opts ...Option) *Server {
	s := &Server{
		log:       slog.Default(),
		env:       environment.Development,
		sched:     clock.NewReal(),
		pagesCfg:  defaultPages(),
		cookies:   cookies,
		snapshots: snapshots,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		registry:  prometheus.NewRegistry(),
		checks:    make(map[string]httpserver.Check),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("server"))
	s.validate.RegisterTagNameFunc(jsonName)

	if s.guardStore == nil {
		s.guardStore = submitguard.NewMemoryStore(s.sched)
	}
	s.toastMetrics = toast.NewMetrics(s.registry)
	s.guard = submitguard.New(s.guardStore,
		submitguard.WithLogger(s.log),
		submitguard.WithMetrics(submitguard.NewMetrics(s.registry)),
		submitguard.WithWindow(s.pagesCfg.GuardWindow),
		submitguard.WithClient(clientID),
		submitguard.WithToasts(s.toastsFor),
	)
	if s.pagesCfg.Capacity <= 0 {
		s.pagesCfg.Capacity = defaultPages().Capacity
	}
	s.pages = cache.New[string, *page](s.pagesCfg.Capacity, cache.WithEvict[string, *page](func(_ string, p *page) {
		p.close()
	}))
	return s
}

func defaultPages() config.Pages {
	return config.Pages{
		Capacity:    1024,
		StreamBuf:   64,
		ToastRate:   5,
		ToastBurst:  10,
		GuardWindow: submitguard.Window,
	}
}

// jsonName reports validation errors under the JSON field name.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(recovery.Middleware(s.log))
	r.Use(environment.Middleware(s.env))
	r.Use(s.clientCookie)

	r.Get("/", s.index)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(s.log, s.checks))
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/toasts", func(r chi.Router) {
		r.Get("/stream", s.stream)
		r.Post("/", s.createToast)
		r.Post("/{id}/dismiss", s.dismissToast)
	})
	r.Post("/snapshots/{id}/view", s.viewSnapshot)

	r.Route("/api/snapshots", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", userHeader, submitguard.FormHeader, pageHeader},
			MaxAge:         300,
		}))
		r.Get("/", s.listSnapshots)
		r.Get("/all", s.listAllSnapshots)
		r.With(s.guard.Middleware).Post("/", s.createSnapshot)
		r.Get("/{id}", s.getSnapshot)
	})
	return r
}

// Close drops every page and ends their streams.
func (s *Server) Close() {
	s.pages.Purge()
}
