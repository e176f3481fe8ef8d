package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/CallMeMhz/feature-gating/pkg/cookie"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
	"github.com/CallMeMhz/feature-gating/pkg/viewer"
)

const flashKey = "toasts"

// index renders the page. Flash toasts are rendered into the container,
// then parsed back by the page's manager so they run the same timeline as
// toasts shown later.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var flashes []toast.Flash
	if err := s.cookies.GetFlash(w, r, flashKey, &flashes); err != nil && !errors.Is(err, cookie.ErrCookieNotFound) {
		s.log.WarnContext(ctx, "flash cookie unreadable", logger.Error(err))
	}

	p := s.openPage()
	if len(flashes) > 0 {
		var pre bytes.Buffer
		if err := toast.Mount(flashElements(flashes)).Render(ctx, &pre); err != nil {
			s.fail(w, r, err)
			return
		}
		if _, err := p.toasts.RehydrateHTML(ctx, &pre); err != nil {
			s.log.ErrorContext(ctx, "flash toasts not rehydrated", logger.Error(err))
		}
	}

	view := indexView{PageID: p.id}
	view.Toasts, _ = p.container.Children(ctx)
	if snaps, err := s.snapshots.ListAll(ctx); err != nil {
		s.log.ErrorContext(ctx, "snapshot list unavailable", logger.Error(err))
	} else {
		view.Snapshots = snaps
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(pageHeader, p.id)
	if err := layout(view).Render(ctx, w); err != nil {
		s.log.ErrorContext(ctx, "page render failed", logger.Error(err))
	}
}

func flashElements(flashes []toast.Flash) []toast.Element {
	out := make([]toast.Element, 0, len(flashes))
	for _, f := range flashes {
		out = append(out, toast.Element{
			Category: toast.ParseCategory(string(f.Category)),
			Message:  templ.EscapeString(f.Message),
		})
	}
	return out
}

// stream sends the page's container, then every mutation, until the client
// goes away or the page is evicted.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(r)
	if !ok {
		s.fail(w, r, ErrPageNotFound)
		return
	}
	ctx := r.Context()
	children, sub := p.container.Subscribe(ctx)
	defer sub.Close()

	sse := datastar.NewSSE(w, r)
	if err := toast.SyncPatch(sse, children); err != nil {
		s.log.DebugContext(ctx, "toast stream sync failed", logger.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Receive():
			if !ok {
				return
			}
			if err := msg.Data.Patch(sse); err != nil {
				s.log.DebugContext(ctx, "toast stream closed", logger.Error(err))
				return
			}
		}
	}
}

type toastRequest struct {
	Message  string `json:"message" validate:"required,max=500"`
	Category string `json:"category" validate:"omitempty,oneof=info success warning error"`
}

type toastResponse struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (s *Server) createToast(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(r)
	if !ok {
		s.fail(w, r, ErrPageNotFound)
		return
	}
	var req toastRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !p.limiter.Allow() {
		s.fail(w, r, ErrRateLimited)
		return
	}

	n, ok := p.toasts.Show(r.Context(), req.Message, toast.Category(req.Category))
	if !ok {
		s.fail(w, r, errInternalError)
		return
	}
	writeJSON(w, http.StatusCreated, toastResponse{ID: n.ID, Category: string(n.Category), Message: n.Message})
}

func (s *Server) dismissToast(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(r)
	if !ok {
		s.fail(w, r, ErrPageNotFound)
		return
	}
	if err := p.toasts.Dismiss(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// viewSnapshot opens the snapshot in a new window of the requesting page.
// The response is a datastar stream carrying the script that opens it.
func (s *Server) viewSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.viewer == nil {
		s.fail(w, r, ErrNoViewer)
		return
	}
	var toasts *toast.Manager
	if s.viewerToasts {
		toasts = s.toastsFor(r)
	}
	sse := datastar.NewSSE(w, r)
	// Failures were logged by the viewer; the window simply does not open.
	_ = s.viewer.With(viewer.StreamOpener{SSE: sse}, toasts).View(r.Context(), chi.URLParam(r, "id"))
}

// formRequest is a request body that can also arrive as a urlencoded form.
type formRequest interface {
	fromForm(form url.Values)
}

func (t *toastRequest) fromForm(form url.Values) {
	t.Message = form.Get("message")
	t.Category = form.Get("category")
}

// isForm reports whether r carries a urlencoded form body.
func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded"
}

// decode reads a form or a JSON body into v.
func decode(r *http.Request, v formRequest) error {
	switch {
	case isForm(r):
		if err := r.ParseForm(); err != nil {
			return errors.Join(ErrBadRequest, err)
		}
		v.fromForm(r.PostForm)
		return nil
	default:
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			return errors.Join(ErrBadRequest, err)
		}
		return nil
	}
}
