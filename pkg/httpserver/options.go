package httpserver

import (
	"log/slog"
	"net"
	"time"
)

// Config is read from the environment by pkg/config. WriteTimeout defaults to
// zero because the toast stream keeps responses open.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type options struct {
	Config
	listener   net.Listener
	logger     *slog.Logger
	startHooks []func()
	stopHooks  []func()
}

// Option configures a Server.
type Option func(*options)

// WithConfig replaces the address and timeouts. Zero durations mean no limit,
// except ShutdownTimeout which keeps its default.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		shutdown := o.ShutdownTimeout
		o.Config = cfg
		if o.ShutdownTimeout <= 0 {
			o.ShutdownTimeout = shutdown
		}
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *options) { o.Addr = addr }
}

// WithListener serves on an existing listener instead of Addr.
func WithListener(l net.Listener) Option {
	return func(o *options) { o.listener = l }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStartHook runs h once the listener is ready.
func WithStartHook(h func()) Option {
	return func(o *options) { o.startHooks = append(o.startHooks, h) }
}

// WithStopHook runs h after the server has shut down.
func WithStopHook(h func()) Option {
	return func(o *options) { o.stopHooks = append(o.stopHooks, h) }
}
