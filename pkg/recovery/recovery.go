// Package recovery is the global error channel: panics escaping HTTP
// handlers or scheduled continuations are recovered and logged as
// "uncaught error" instead of taking the process down. Nothing else is done
// with them.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
)

// PanicError carries a recovered panic value and the stack at the point of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Report logs an uncaught error.
func Report(ctx context.Context, log *slog.Logger, err error, attrs ...slog.Attr) {
	if log == nil {
		log = slog.Default()
	}
	attrs = append(attrs, logger.Error(err))
	log.LogAttrs(ctx, slog.LevelError, "uncaught error", attrs...)
}

// Wrap returns fn guarded by a recover that reports panics under the given component name.
func Wrap(log *slog.Logger, component string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				Report(context.Background(), log, &PanicError{Value: r, Stack: debug.Stack()}, logger.Component(component))
			}
		}()
		fn()
	}
}

// Middleware recovers panicking handlers, reports them and answers 500
// when nothing has been written yet. http.ErrAbortHandler is re-panicked so
// net/http can abort the connection as intended.
func Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				Report(r.Context(), log, &PanicError{Value: rec, Stack: debug.Stack()},
					logger.Component("http"),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
