package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
)

const defaultShutdownTimeout = 5 * time.Second

// Server wraps http.Server with signal handling and graceful shutdown.
type Server struct {
	opts options

	mu     sync.Mutex
	srv    *http.Server
	addr   net.Addr
	cancel context.CancelFunc
}

// New returns a Server listening on :8080 unless configured otherwise.
func New(opts ...Option) *Server {
	o := options{Config: Config{Addr: ":8080", ShutdownTimeout: defaultShutdownTimeout}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Discard()
	}
	return &Server{opts: o}
}

// Run serves handler until ctx is done or a termination signal arrives, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if handler == nil {
		handler = http.NotFoundHandler()
	}
	srv, ln, err := s.listen(handler)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.opts.logger.Info("http server started", slog.String("addr", ln.Addr().String()))
	for _, h := range s.opts.startHooks {
		h()
	}

	select {
	case <-ctx.Done():
		err = s.Shutdown(context.WithoutCancel(ctx))
		<-errCh
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			err = errors.Join(ErrStart, err)
		}
	}
	return err
}

// Addr returns the bound address once Run is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown stops accepting connections, cancels request contexts and waits
// for handlers up to ShutdownTimeout. Calling it more than once, or before
// Run, is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if srv == nil || cancel == nil {
		return nil
	}

	cancel()
	ctx, done := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer done()

	err := srv.Shutdown(ctx)
	for _, h := range s.opts.stopHooks {
		h()
	}
	s.opts.logger.Info("http server stopped")
	if err != nil {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}

func (s *Server) listen(handler http.Handler) (*http.Server, net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil, nil, ErrAlreadyRunning
	}

	ln := s.opts.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", s.opts.Addr); err != nil {
			return nil, nil, errors.Join(ErrStart, err)
		}
	}

	base, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.addr = ln.Addr()
	s.srv = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return base },
		ErrorLog:     slog.NewLogLogger(s.opts.logger.Handler(), slog.LevelWarn),
	}
	return s.srv, ln, nil
}
