package server

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/CallMeMhz/feature-gating/pkg/toast"
)

const (
	pageParam  = "page"
	pageHeader = "X-Page-ID"
)

// page is the toast state of one loaded page.
type page struct {
	id        string
	container *toast.StreamContainer
	toasts    *toast.Manager
	limiter   *rate.Limiter
}

func (p *page) close() {
	_ = p.container.Close()
}

// openPage registers a new page. The least recently used page is evicted
// when the registry is full.
func (s *Server) openPage() *page {
	id := uuid.NewString()
	c := toast.NewStreamContainer(s.pagesCfg.StreamBuf)
	p := &page{
		id:        id,
		container: c,
		toasts: toast.NewManager(c, s.sched,
			toast.WithLogger(s.log),
			toast.WithMetrics(s.toastMetrics),
			toast.WithDismissURL(func(nid string) string { return dismissURL(id, nid) }),
		),
		limiter: rate.NewLimiter(rate.Limit(s.pagesCfg.ToastRate), s.pagesCfg.ToastBurst),
	}
	s.pages.Put(id, p)
	return p
}

// pageFor finds the page a request belongs to, from the page query
// parameter or the X-Page-ID header.
func (s *Server) pageFor(r *http.Request) (*page, bool) {
	id := r.URL.Query().Get(pageParam)
	if id == "" {
		id = r.Header.Get(pageHeader)
	}
	if id == "" {
		return nil, false
	}
	return s.pages.Get(id)
}

// toastsFor returns the manager of the request's page, nil when the page is
// unknown. A nil manager ignores every call.
func (s *Server) toastsFor(r *http.Request) *toast.Manager {
	if p, ok := s.pageFor(r); ok {
		return p.toasts
	}
	return nil
}

func dismissURL(pageID, id string) string {
	return "/toasts/" + url.PathEscape(id) + "/dismiss?" + pageParam + "=" + url.QueryEscape(pageID)
}

func streamURL(pageID string) string {
	return "/toasts/stream?" + pageParam + "=" + url.QueryEscape(pageID)
}
