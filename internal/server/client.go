package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/CallMeMhz/feature-gating/pkg/cookie"
	"github.com/CallMeMhz/feature-gating/pkg/submitguard"
)

const clientCookieMaxAge = 365 * 24 * time.Hour

type clientKey struct{}

// clientCookie makes sure every request carries a signed client id. The id
// scopes the submission guard to one browser.
func (s *Server) clientCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.cookies.GetSigned(r, submitguard.ClientCookie)
		if err != nil || id == "" {
			id = uuid.NewString()
			s.cookies.SetSigned(w, submitguard.ClientCookie, id,
				cookie.WithMaxAge(int(clientCookieMaxAge.Seconds())),
				cookie.WithHTTPOnly(true),
			)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, id)))
	})
}

// clientID identifies the submitting client for the guard, falling back to
// the remote host when the middleware did not run.
func clientID(r *http.Request) string {
	if id, ok := r.Context().Value(clientKey{}).(string); ok && id != "" {
		return id
	}
	return submitguard.ClientID(r)
}
