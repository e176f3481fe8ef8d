package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/requestid"
	"github.com/CallMeMhz/feature-gating/pkg/snapshot"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
)

var (
	ErrPageNotFound  = errors.New("page not found")
	ErrBadRequest    = errors.New("malformed request body")
	ErrRateLimited   = errors.New("too many toasts")
	ErrNoViewer      = errors.New("snapshot viewer not configured")
	ErrMissingParam  = errors.New("missing query parameter")
	errInternalError = errors.New("internal error")
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

type errorInfo struct {
	status int
	detail ErrorDetail
}

func classify(err error) errorInfo {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		details := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = append(details[fe.Field()], fe.Tag())
		}
		return errorInfo{http.StatusBadRequest, ErrorDetail{Code: "validation_error", Message: "validation failed", Details: details}}
	case errors.Is(err, snapshot.ErrNotFound),
		errors.Is(err, snapshot.ErrProjectNotFound),
		errors.Is(err, toast.ErrNotificationNotFound),
		errors.Is(err, ErrPageNotFound):
		return errorInfo{http.StatusNotFound, ErrorDetail{Code: "not_found", Message: message(err)}}
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMissingParam):
		return errorInfo{http.StatusBadRequest, ErrorDetail{Code: "bad_request", Message: err.Error()}}
	case errors.Is(err, ErrRateLimited):
		return errorInfo{http.StatusTooManyRequests, ErrorDetail{Code: "rate_limited", Message: err.Error()}}
	case errors.Is(err, ErrNoViewer):
		return errorInfo{http.StatusServiceUnavailable, ErrorDetail{Code: "unavailable", Message: err.Error()}}
	default:
		return errorInfo{http.StatusInternalServerError, ErrorDetail{Code: "internal_error", Message: errInternalError.Error()}}
	}
}

// message returns the text of the first known sentinel in err's chain.
func message(err error) string {
	for _, known := range []error{snapshot.ErrNotFound, snapshot.ErrProjectNotFound, toast.ErrNotificationNotFound, ErrPageNotFound} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

// fail logs err and writes it as JSON. Client errors log at warn, the rest
// at error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	info := classify(err)
	level := slog.LevelError
	if info.status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	s.log.LogAttrs(r.Context(), level, "request error",
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", info.status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	writeJSON(w, info.status, struct {
		Error ErrorDetail `json:"error"`
	}{info.detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
