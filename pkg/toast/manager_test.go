package toast_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallMeMhz/feature-gating/pkg/clock"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type transition struct {
	ID       string
	From, To toast.State
}

type recorder struct {
	mu  sync.Mutex
	got []transition
}

func (r *recorder) hook(n toast.Notification, from toast.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, transition{ID: n.ID, From: from, To: n.State})
}

func (r *recorder) of(id string) []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []transition
	for _, t := range r.got {
		if t.ID == id {
			out = append(out, t)
		}
	}
	return out
}

// countingContainer counts removals per id.
type countingContainer struct {
	*toast.MemoryContainer
	mu      sync.Mutex
	removed map[string]int
}

func newCountingContainer(seed ...toast.Element) *countingContainer {
	return &countingContainer{MemoryContainer: toast.NewMemoryContainer(seed...), removed: map[string]int{}}
}

func (c *countingContainer) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	c.removed[id]++
	c.mu.Unlock()
	return c.MemoryContainer.Remove(ctx, id)
}

func sequentialIDs() toast.Option {
	var n int
	return toast.WithIDGenerator(func(time.Time) string {
		n++
		return fmt.Sprintf("n%d", n)
	})
}

func newManager(t *testing.T, c toast.Container, opts ...toast.Option) (*toast.Manager, *clock.Virtual, *recorder) {
	t.Helper()
	clk := clock.NewVirtual(epoch)
	rec := &recorder{}
	opts = append([]toast.Option{
		toast.WithLogger(logger.Discard()),
		toast.WithTransitionHook(rec.hook),
		sequentialIDs(),
	}, opts...)
	return toast.NewManager(c, clk, opts...), clk, rec
}

func TestShow_RendersCategory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in         toast.Category
		background string
		icon       string
	}{
		{toast.CategorySuccess, "bg-green-500", "M9 12l2 2 4-4"},
		{toast.CategoryError, "bg-red-500", "M10 14l2-2m0 0l2-2"},
		{toast.CategoryWarning, "bg-yellow-500", "M12 9v2m0 4h.01"},
		{toast.CategoryInfo, "bg-blue-500", "M13 16h-1v-4h-1"},
		{"bogus", "bg-blue-500", "M13 16h-1v-4h-1"},
		{"", "bg-blue-500", "M13 16h-1v-4h-1"},
	}
	for _, tc := range cases {
		t.Run(string(tc.in), func(t *testing.T) {
			t.Parallel()
			c := toast.NewMemoryContainer()
			m, _, _ := newManager(t, c)

			n, ok := m.Show(context.Background(), "Saved", tc.in)
			require.True(t, ok)

			el, found := c.Get(n.ID)
			require.True(t, found)
			html := el.HTML()
			assert.Contains(t, el.Class(), "toast max-w-md w-full shadow-lg rounded-lg pointer-events-auto overflow-hidden mb-2")
			assert.Contains(t, el.Class(), tc.background)
			assert.Contains(t, html, tc.icon)
			assert.Contains(t, html, `id="toast-`+n.ID+`"`)
			assert.Contains(t, html, ">Saved</p>")
			assert.Equal(t, toast.StyleHidden, el.Style)
			assert.Equal(t, "opacity: 0; transform: translateX(100%); transition: all 0.3s ease-out", el.Style.String())
		})
	}
}

func TestShow_Lifecycle(t *testing.T) {
	t.Parallel()

	c := newCountingContainer()
	m, clk, rec := newManager(t, c)

	n, ok := m.Show(context.Background(), "hello", toast.CategoryInfo)
	require.True(t, ok)
	assert.Equal(t, toast.Entering, n.State)
	assert.Equal(t, epoch, n.CreatedAt)

	clk.Advance(9 * time.Millisecond)
	got, _ := m.Get(n.ID)
	assert.Equal(t, toast.Entering, got.State)

	clk.Advance(time.Millisecond)
	got, _ = m.Get(n.ID)
	assert.Equal(t, toast.Visible, got.State)
	el, _ := c.Get(n.ID)
	assert.Equal(t, toast.StyleShown, el.Style)

	clk.Advance(5000*time.Millisecond - 10*time.Millisecond - time.Millisecond)
	got, _ = m.Get(n.ID)
	assert.Equal(t, toast.Visible, got.State)

	clk.Advance(time.Millisecond)
	got, _ = m.Get(n.ID)
	assert.Equal(t, toast.Exiting, got.State)
	el, _ = c.Get(n.ID)
	assert.Equal(t, toast.StyleHidden, el.Style)

	clk.Advance(299 * time.Millisecond)
	assert.Equal(t, 1, c.Len())

	clk.Advance(time.Millisecond)
	assert.Zero(t, c.Len())
	_, live := m.Get(n.ID)
	assert.False(t, live)

	assert.Equal(t, []transition{
		{n.ID, toast.Entering, toast.Visible},
		{n.ID, toast.Visible, toast.Exiting},
		{n.ID, toast.Exiting, toast.Removed},
	}, rec.of(n.ID))
	assert.Equal(t, 1, c.removed[n.ID])
	assert.Zero(t, clk.Pending())
}

func TestShow_ManyNotificationsEachTransitionOnce(t *testing.T) {
	t.Parallel()

	c := newCountingContainer()
	m, clk, rec := newManager(t, c)

	var ids []string
	for i := range 5 {
		n, ok := m.Show(context.Background(), fmt.Sprintf("msg %d", i), toast.Categories[i%len(toast.Categories)])
		require.True(t, ok)
		ids = append(ids, n.ID)
		clk.Advance(700 * time.Millisecond)
	}
	clk.Advance(10 * time.Second)

	assert.Zero(t, c.Len())
	assert.Empty(t, m.Live())
	for _, id := range ids {
		assert.Len(t, rec.of(id), 3, id)
		assert.Equal(t, 1, c.removed[id], id)
	}
}

func TestShow_MissingContainer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	metrics := toast.NewMetrics(reg)
	log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON))
	m := toast.NewManager(nil, clock.NewVirtual(epoch), toast.WithLogger(log), toast.WithMetrics(metrics))

	assert.NotPanics(t, func() {
		_, ok := m.Show(context.Background(), "lost", toast.CategoryError)
		assert.False(t, ok)
	})
	assert.Contains(t, buf.String(), "toast container not found")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ContainerMissing()))
	assert.Zero(t, m.Rehydrate(context.Background()))

	var nilManager *toast.Manager
	assert.NotPanics(t, func() {
		_, ok := nilManager.Show(context.Background(), "lost", toast.CategoryInfo)
		assert.False(t, ok)
		_, ok = nilManager.Get("n1")
		assert.False(t, ok)
		assert.Empty(t, nilManager.Live())
		assert.Zero(t, nilManager.Rehydrate(context.Background()))
		assert.ErrorIs(t, nilManager.Dismiss(context.Background(), "n1"), toast.ErrNotificationNotFound)
	})
}

// staleContainer keeps answering Children with the elements it was seeded
// with, even after they are removed.
type staleContainer struct {
	*countingContainer
	snapshot []toast.Element
}

func (c *staleContainer) Children(context.Context) ([]toast.Element, error) {
	return c.snapshot, nil
}

func TestRehydrate_StaleChildrenRunOnce(t *testing.T) {
	t.Parallel()

	seed := toast.Element{ID: "n1", Category: toast.CategoryInfo, Message: "hi", Style: toast.StyleHidden}
	c := &staleContainer{countingContainer: newCountingContainer(seed), snapshot: []toast.Element{seed}}
	m, clk, rec := newManager(t, c)

	assert.Equal(t, 1, m.Rehydrate(context.Background()))
	clk.Advance(6 * time.Second)
	_, live := m.Get("n1")
	require.False(t, live)

	assert.Zero(t, m.Rehydrate(context.Background()))
	clk.Advance(6 * time.Second)

	assert.Equal(t, []transition{
		{"n1", toast.Entering, toast.Visible},
		{"n1", toast.Visible, toast.Exiting},
		{"n1", toast.Exiting, toast.Removed},
	}, rec.of("n1"))
	assert.Equal(t, 1, c.removed["n1"])
}

func TestShow_SanitizesMessage(t *testing.T) {
	t.Parallel()

	c := toast.NewMemoryContainer()
	m, _, _ := newManager(t, c)

	n, ok := m.Show(context.Background(), `<script>alert(1)</script><b>bold</b>`, toast.CategoryInfo)
	require.True(t, ok)
	assert.Equal(t, "<b>bold</b>", n.Message)

	el, _ := c.Get(n.ID)
	assert.NotContains(t, el.HTML(), "<script>")
}

func TestDismiss(t *testing.T) {
	t.Parallel()

	c := newCountingContainer()
	m, clk, rec := newManager(t, c)

	n, _ := m.Show(context.Background(), "bye", toast.CategoryInfo)
	clk.Advance(10 * time.Millisecond)

	require.NoError(t, m.Dismiss(context.Background(), n.ID))
	assert.Zero(t, c.Len())
	assert.ErrorIs(t, m.Dismiss(context.Background(), n.ID), toast.ErrNotificationNotFound)

	// Pending expiry finds the notification removed and does nothing.
	clk.Advance(10 * time.Second)
	assert.Equal(t, []transition{
		{n.ID, toast.Entering, toast.Visible},
		{n.ID, toast.Visible, toast.Removed},
	}, rec.of(n.ID))
	assert.Equal(t, 1, c.removed[n.ID])
}

func TestDismiss_WhileExiting(t *testing.T) {
	t.Parallel()

	c := newCountingContainer()
	m, clk, rec := newManager(t, c)

	n, _ := m.Show(context.Background(), "bye", toast.CategoryInfo)
	clk.Advance(5100 * time.Millisecond)
	require.NoError(t, m.Dismiss(context.Background(), n.ID))

	clk.Advance(time.Second)
	assert.Len(t, rec.of(n.ID), 3)
	assert.Equal(t, 1, c.removed[n.ID], "detach timer must not remove twice")
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := toast.NewMetrics(reg)
	m, clk, _ := newManager(t, toast.NewMemoryContainer(), toast.WithMetrics(metrics))

	m.Success(context.Background(), "a")
	m.Success(context.Background(), "b")
	m.Error(context.Background(), "c")
	clk.Advance(6 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Shown().WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Shown().WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Transitions().WithLabelValues("removed")))
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager(t, toast.NewMemoryContainer())
	ctx := context.Background()

	for want, show := range map[toast.Category]func(context.Context, string) (toast.Notification, bool){
		toast.CategoryInfo:    m.Info,
		toast.CategorySuccess: m.Success,
		toast.CategoryWarning: m.Warning,
		toast.CategoryError:   m.Error,
	} {
		n, ok := show(ctx, "x")
		require.True(t, ok)
		assert.Equal(t, want, n.Category)
	}
	assert.Len(t, m.Live(), 4)
}

func TestDismissURL(t *testing.T) {
	t.Parallel()

	c := toast.NewMemoryContainer()
	m, _, _ := newManager(t, c, toast.WithDismissURL(func(id string) string {
		return "/toasts/" + id + "/dismiss?page=p1"
	}))

	n, _ := m.Info(context.Background(), "x")
	el, _ := c.Get(n.ID)
	assert.Contains(t, el.HTML(), `data-on-click="@post(&#39;/toasts/`+n.ID+`/dismiss?page=p1&#39;)"`)
	assert.NotContains(t, el.HTML(), "onclick=")
}

func TestContinuationPanicIsRecovered(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelError))
	clk := clock.NewVirtual(epoch)
	m := toast.NewManager(toast.NewMemoryContainer(), clk,
		toast.WithLogger(log),
		toast.WithTransitionHook(func(toast.Notification, toast.State) { panic("hook exploded") }),
	)

	m.Info(context.Background(), "x")
	assert.NotPanics(t, func() { clk.Advance(time.Second) })
	assert.True(t, strings.Contains(buf.String(), "uncaught error"))
}
