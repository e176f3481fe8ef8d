// Package viewer opens a snapshot's YAML in a new browsing context.
//
// View fetches GET {base}/api/snapshots/{id} once, without retries. On a 2xx
// answer it opens exactly one window holding "<pre>" + yaml + "</pre>", the
// YAML written as is. Any other outcome opens nothing; by default the
// failure is only logged at debug level, and WithFailureToasts turns it into
// an error toast.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
)

var (
	ErrFetch    = errors.New("viewer: snapshot fetch failed")
	ErrNoOpener = errors.New("viewer: no opener")
)

// StatusError reports a non-2xx answer.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("viewer: unexpected status %d", e.StatusCode)
}

// Config is read from the environment by pkg/config.
type Config struct {
	BaseURL string        `env:"VIEWER_BASE_URL" envDefault:"http://localhost:8080"`
	Timeout time.Duration `env:"VIEWER_TIMEOUT" envDefault:"10s"`
}

type snapshotResponse struct {
	ID   string `json:"id"`
	YAML string `json:"yaml"`
}

// Viewer fetches snapshots and hands the document to an Opener.
type Viewer struct {
	client *resty.Client
	opener Opener
	toasts *toast.Manager
	log    *slog.Logger
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(v *Viewer) {
		if l != nil {
			v.log = l
		}
	}
}

// WithFailureToasts reports failed views as error toasts on m.
func WithFailureToasts(m *toast.Manager) Option {
	return func(v *Viewer) { v.toasts = m }
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(v *Viewer) {
		if d > 0 {
			v.client.SetTimeout(d)
		}
	}
}

// New creates a viewer that fetches from baseURL and opens windows through
// opener.
func New(baseURL string, opener Opener, opts ...Option) *Viewer {
	v := &Viewer{
		client: resty.New().
			SetBaseURL(baseURL).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
		opener: opener,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewFromConfig is New with the base URL and timeout taken from cfg.
func NewFromConfig(cfg Config, opener Opener, opts ...Option) *Viewer {
	return New(cfg.BaseURL, opener, append([]Option{WithTimeout(cfg.Timeout)}, opts...)...)
}

// With returns a viewer sharing v's HTTP client but opening windows through
// opener and reporting failures to toasts (nil for silent).
func (v *Viewer) With(opener Opener, toasts *toast.Manager) *Viewer {
	c := *v
	c.opener = opener
	c.toasts = toasts
	return &c
}

// View fetches the snapshot and opens it. The returned error is for callers
// that care; nothing else is done with it unless failure toasts are on.
func (v *Viewer) View(ctx context.Context, id string) error {
	if v.opener == nil {
		return ErrNoOpener
	}
	yaml, err := v.fetch(ctx, id)
	if err != nil {
		v.log.DebugContext(ctx, "snapshot view failed", logger.SnapshotID(id), logger.Error(err))
		if v.toasts != nil {
			v.toasts.Error(ctx, "Snapshot could not be loaded.")
		}
		return err
	}
	return v.opener.Open(ctx, Document(yaml))
}

// Document wraps yaml in a pre element, unescaped.
func Document(yaml string) string {
	return "<pre>" + yaml + "</pre>"
}

func (v *Viewer) fetch(ctx context.Context, id string) (string, error) {
	var out snapshotResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/api/snapshots/{id}")
	if err != nil {
		return "", errors.Join(ErrFetch, err)
	}
	if !resp.IsSuccess() {
		return "", errors.Join(ErrFetch, &StatusError{StatusCode: resp.StatusCode()})
	}
	return out.YAML, nil
}
