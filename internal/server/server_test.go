package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallMeMhz/feature-gating/internal/config"
	"github.com/CallMeMhz/feature-gating/pkg/clock"
	"github.com/CallMeMhz/feature-gating/pkg/cookie"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/snapshot"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
	"github.com/CallMeMhz/feature-gating/pkg/viewer"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

const (
	secret    = "0123456789abcdef0123456789abcdef"
	projectID = "p1"
)

type fixture struct {
	t     *testing.T
	srv   *Server
	h     http.Handler
	clock *clock.Virtual
	reg   *prometheus.Registry
	jar   map[string]*http.Cookie
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	cookies, err := cookie.New([]string{secret})
	require.NoError(t, err)

	vc := clock.NewVirtual(epoch)
	reg := prometheus.NewRegistry()
	projects := snapshot.NewMemoryProjects(snapshot.Project{
		ID:        projectID,
		Name:      "Checkout",
		CreatedAt: epoch,
		Items:     []any{map[string]any{"name": "new_cart"}},
	})
	svc := snapshot.NewService(snapshot.NewMemoryStore(), projects, snapshot.WithNow(vc.Now))

	opts = append([]Option{
		WithLogger(logger.Discard()),
		WithScheduler(vc),
		WithRegistry(reg),
	}, opts...)
	srv := New(svc, cookies, opts...)
	t.Cleanup(srv.Close)

	return &fixture{t: t, srv: srv, h: srv.Handler(), clock: vc, reg: reg, jar: map[string]*http.Cookie{}}
}

// do serves req, carrying cookies between requests like a browser.
func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	f.t.Helper()
	for _, c := range f.jar {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(f.jar, c.Name)
			continue
		}
		f.jar[c.Name] = c
	}
	return rec
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (f *fixture) postJSON(target string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	data, err := json.Marshal(body)
	require.NoError(f.t, err)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return f.do(req)
}

func (f *fixture) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

// openPage loads the index and returns the page id.
func (f *fixture) openPage() string {
	f.t.Helper()
	rec := f.get("/")
	require.Equal(f.t, http.StatusOK, rec.Code)
	id := rec.Header().Get(pageHeader)
	require.NotEmpty(f.t, id)
	return id
}

func (f *fixture) children(pageID string) []toast.Element {
	f.t.Helper()
	p, ok := f.srv.pages.Get(pageID)
	require.True(f.t, ok, "page %s not registered", pageID)
	els, err := p.container.Children(context.Background())
	require.NoError(f.t, err)
	return els
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body struct {
		Error ErrorDetail `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	pageID := rec.Header().Get(pageHeader)
	require.NotEmpty(t, pageID)

	body := rec.Body.String()
	assert.Contains(t, body, `id="toast-container"`)
	assert.Contains(t, body, "/toasts/stream?page="+pageID)
	assert.Empty(t, f.children(pageID))

	assert.Contains(t, f.jar, "fg_client", "client cookie issued")
}

func TestIndex_FlashToasts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.postForm("/api/snapshots", url.Values{"project_id": {projectID}, "remark": {"release"}, "_form": {"create-snapshot"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = f.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	pageID := rec.Header().Get(pageHeader)

	els := f.children(pageID)
	require.Len(t, els, 1)
	assert.Equal(t, toast.CategorySuccess, els[0].Category)
	assert.Equal(t, "Snapshot created.", els[0].Message)
	assert.NotEmpty(t, els[0].ID)
	assert.Contains(t, rec.Body.String(), `id="toast-`+els[0].ID+`"`)
	assert.Contains(t, rec.Body.String(), "Snapshot created.")
	assert.Contains(t, rec.Body.String(), dismissURL(pageID, els[0].ID))

	// Flash is read once.
	assert.Empty(t, f.children(f.openPage()))

	// The rehydrated toast runs the regular timeline.
	f.clock.Advance(toast.DwellTime + toast.ExitTime)
	assert.Empty(t, f.children(pageID))
}

func TestCreateToast(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		pageID := f.openPage()

		rec := f.postJSON("/toasts?page="+pageID, map[string]string{"message": "Saved", "category": "success"})
		require.Equal(t, http.StatusCreated, rec.Code)

		var got toastResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "success", got.Category)
		assert.Equal(t, "Saved", got.Message)

		els := f.children(pageID)
		require.Len(t, els, 1)
		assert.Equal(t, got.ID, els[0].ID)
		assert.Equal(t, toast.StyleHidden, els[0].Style)

		f.clock.Advance(toast.RevealDelay)
		assert.Equal(t, toast.StyleShown, f.children(pageID)[0].Style)
	})

	t.Run("form defaults to info", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		pageID := f.openPage()

		rec := f.postForm("/toasts?page="+pageID, url.Values{"message": {"Hello"}})
		require.Equal(t, http.StatusCreated, rec.Code)
		els := f.children(pageID)
		require.Len(t, els, 1)
		assert.Equal(t, toast.CategoryInfo, els[0].Category)
	})

	t.Run("page header", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		pageID := f.openPage()

		rec := f.postJSON("/toasts", map[string]string{"message": "Hi"}, pageHeader, pageID)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Len(t, f.children(pageID), 1)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		pageID := f.openPage()

		rec := f.postJSON("/toasts?page="+pageID, map[string]string{"category": "fatal"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		detail := errorBody(t, rec)
		assert.Equal(t, "validation_error", detail.Code)
		assert.Equal(t, []string{"required"}, detail.Details["message"])
		assert.Equal(t, []string{"oneof"}, detail.Details["category"])
		assert.Empty(t, f.children(pageID))
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		pageID := f.openPage()

		req := httptest.NewRequest(http.MethodPost, "/toasts?page="+pageID, strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := f.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown page", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.postJSON("/toasts?page=nope", map[string]string{"message": "Hi"})
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "page not found", errorBody(t, rec).Message)
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		pages := defaultPages()
		pages.ToastRate = 0.001
		pages.ToastBurst = 1
		f := newFixture(t, WithPages(pages))
		pageID := f.openPage()

		require.Equal(t, http.StatusCreated, f.postJSON("/toasts?page="+pageID, map[string]string{"message": "one"}).Code)
		rec := f.postJSON("/toasts?page="+pageID, map[string]string{"message": "two"})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Len(t, f.children(pageID), 1)
	})
}

func TestDismissToast(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	pageID := f.openPage()

	rec := f.postJSON("/toasts?page="+pageID, map[string]string{"message": "Bye"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var got toastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	rec = f.do(httptest.NewRequest(http.MethodPost, dismissURL(pageID, got.ID), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.children(pageID))

	rec = f.do(httptest.NewRequest(http.MethodPost, dismissURL(pageID, got.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Pending timers of the dismissed toast fire harmlessly.
	f.clock.Advance(toast.DwellTime + toast.ExitTime)
	assert.Empty(t, f.children(pageID))
}

func TestPageEviction(t *testing.T) {
	t.Parallel()

	pages := defaultPages()
	pages.Capacity = 1
	f := newFixture(t, WithPages(pages))

	first := f.openPage()
	second := f.openPage()

	_, ok := f.srv.pages.Get(first)
	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, f.get(streamURL(first)).Code)
	_, ok = f.srv.pages.Get(second)
	assert.True(t, ok)
}

func TestStream(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ts := httptest.NewServer(f.h)
	t.Cleanup(ts.Close)

	pageID := f.openPage()
	rec := f.postJSON("/toasts?page="+pageID, map[string]string{"message": "Before connect"})
	require.Equal(t, http.StatusCreated, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+streamURL(pageID), nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	waitFor := func(substr string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream ended before %q", substr)
				if strings.Contains(line, substr) {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", substr)
			}
		}
	}

	// The sync patch carries toasts shown before the stream connected.
	waitFor("Before connect")

	rec = f.postJSON("/toasts?page="+pageID, map[string]string{"message": "After connect"})
	require.Equal(t, http.StatusCreated, rec.Code)
	waitFor("After connect")

	f.clock.Advance(toast.RevealDelay)
	waitFor("translateX(0)")
}

func TestSnapshotAPI(t *testing.T) {
	t.Parallel()

	t.Run("create and read", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.postJSON("/api/snapshots", map[string]string{"project_id": projectID, "remark": "release"}, userHeader, "alice")
		require.Equal(t, http.StatusCreated, rec.Code)

		var created snapshot.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "alice", created.UpdatedBy)
		assert.Equal(t, "Checkout", created.ProjectName)
		assert.True(t, strings.HasPrefix(created.YAML, "snapshot:"))

		rec = f.get("/api/snapshots/" + created.ID)
		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, created.YAML, got["yaml"])

		rec = f.get("/api/snapshots?project_id=" + projectID)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []snapshot.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, created.ID, list[0].ID)

		rec = f.get("/api/snapshots/all")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 1)
	})

	t.Run("anonymous user", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.postJSON("/api/snapshots", map[string]string{"project_id": projectID})
		require.Equal(t, http.StatusCreated, rec.Code)
		var created snapshot.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "anonymous", created.UpdatedBy)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.get("/api/snapshots/65a000000000000000000001")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "snapshot not found", errorBody(t, rec).Message)

		rec = f.postJSON("/api/snapshots", map[string]string{"project_id": "missing"})
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "project not found", errorBody(t, rec).Message)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.postJSON("/api/snapshots", map[string]string{"remark": "no project"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"required"}, errorBody(t, rec).Details["project_id"])

		rec = f.get("/api/snapshots")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.get("/api/snapshots/all")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}

func TestSnapshotAPI_DoubleSubmit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	pageID := f.openPage()
	target := "/api/snapshots?page=" + pageID
	body := map[string]string{"project_id": projectID}

	require.Equal(t, http.StatusCreated, f.postJSON(target, body).Code)

	rec := f.postJSON(target, body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "submission already in progress")

	var warnings int
	for _, e := range f.children(pageID) {
		if e.Category == toast.CategoryWarning {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)

	// Another form from the same client is not blocked.
	require.Equal(t, http.StatusCreated, f.postJSON(target, body, "X-Form-Key", "other").Code)

	f.clock.Advance(3 * time.Second)
	require.Equal(t, http.StatusCreated, f.postJSON(target, body).Code)

	rec = f.get("/api/snapshots/all")
	var list []snapshot.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 3)
}

func snapshotStub(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestViewSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("opens window", func(t *testing.T) {
		t.Parallel()

		stub := snapshotStub(t, http.StatusOK, `{"id":"abc","yaml":"a: 1"}`)
		f := newFixture(t, WithViewer(viewer.New(stub.URL, nil)))

		rec := f.do(httptest.NewRequest(http.MethodPost, "/snapshots/abc/view", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "window.open")
		assert.Contains(t, rec.Body.String(), `\u003cpre\u003ea: 1\u003c/pre\u003e`)
	})

	t.Run("failure is silent by default", func(t *testing.T) {
		t.Parallel()

		stub := snapshotStub(t, http.StatusNotFound, `{"error":{"message":"snapshot not found"}}`)
		f := newFixture(t, WithViewer(viewer.New(stub.URL, nil)))
		pageID := f.openPage()

		rec := f.do(httptest.NewRequest(http.MethodPost, "/snapshots/abc/view?page="+pageID, nil))
		assert.NotContains(t, rec.Body.String(), "window.open")
		assert.Empty(t, f.children(pageID))
	})

	t.Run("failure toast when enabled", func(t *testing.T) {
		t.Parallel()

		stub := snapshotStub(t, http.StatusInternalServerError, `{}`)
		f := newFixture(t, WithViewer(viewer.New(stub.URL, nil)), WithViewerFailureToasts(true))
		pageID := f.openPage()

		rec := f.do(httptest.NewRequest(http.MethodPost, "/snapshots/abc/view?page="+pageID, nil))
		assert.NotContains(t, rec.Body.String(), "window.open")
		els := f.children(pageID)
		require.Len(t, els, 1)
		assert.Equal(t, toast.CategoryError, els[0].Category)
	})

	t.Run("no viewer", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec := f.do(httptest.NewRequest(http.MethodPost, "/snapshots/abc/view", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithPages(config.Pages{StreamBuf: 8, ToastRate: 10, ToastBurst: 10}))
	pageID := f.openPage()
	require.Equal(t, http.StatusCreated, f.postJSON("/toasts?page="+pageID, map[string]string{"message": "m"}).Code)

	rec := f.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `toast_shown_total{category="info"} 1`)

	rec = f.get("/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALIVE")

	rec = f.get("/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := f.do(req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
