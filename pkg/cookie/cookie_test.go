package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallMeMhz/feature-gating/pkg/cookie"
)

const (
	secretA = "0123456789abcdef0123456789abcdef"
	secretB = "fedcba9876543210fedcba9876543210"
)

// roundTrip copies the cookies written to w into a fresh request.
func roundTrip(w *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := cookie.New(nil)
	assert.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.New([]string{"", ""})
	assert.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.New([]string{"short"})
	assert.ErrorIs(t, err, cookie.ErrSecretTooShort)

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestManager_Defaults(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA}, cookie.WithSecure(true))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Set(w, "fg_client", "abc", cookie.WithMaxAge(60))

	cs := w.Result().Cookies()
	require.Len(t, cs, 1)
	assert.Equal(t, "abc", cs[0].Value)
	assert.Equal(t, "/", cs[0].Path)
	assert.True(t, cs[0].Secure)
	assert.True(t, cs[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cs[0].SameSite)
	assert.Equal(t, 60, cs[0].MaxAge)
}

func TestManager_Signed(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.SetSigned(w, "fg_client", "client-1")
	r := roundTrip(w)

	v, err := m.GetSigned(r, "fg_client")
	require.NoError(t, err)
	assert.Equal(t, "client-1", v)

	t.Run("tampered", func(t *testing.T) {
		c, _ := r.Cookie("fg_client")
		payload, sig, _ := strings.Cut(c.Value, ".")
		forged := httptest.NewRequest(http.MethodGet, "/", nil)
		forged.AddCookie(&http.Cookie{Name: "fg_client", Value: payload + "x." + sig})
		_, err := m.GetSigned(forged, "fg_client")
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := m.GetSigned(httptest.NewRequest(http.MethodGet, "/", nil), "fg_client")
		assert.ErrorIs(t, err, cookie.ErrCookieNotFound)
	})

	t.Run("rotated secret still verifies", func(t *testing.T) {
		rotated, err := cookie.New([]string{secretB, secretA})
		require.NoError(t, err)
		v, err := rotated.GetSigned(r, "fg_client")
		require.NoError(t, err)
		assert.Equal(t, "client-1", v)
	})
}

func TestManager_Encrypted(t *testing.T) {
	t.Parallel()

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, m.SetEncrypted(w, "secret", "hidden value"))
	r := roundTrip(w)

	c, _ := r.Cookie("secret")
	assert.NotContains(t, c.Value, "hidden")

	v, err := m.GetEncrypted(r, "secret")
	require.NoError(t, err)
	assert.Equal(t, "hidden value", v)

	other, err := cookie.New([]string{secretB})
	require.NoError(t, err)
	_, err = other.GetEncrypted(r, "secret")
	assert.ErrorIs(t, err, cookie.ErrDecryptionFailed)
}

func TestManager_Flash(t *testing.T) {
	t.Parallel()

	type flash struct {
		Message  string `json:"message"`
		Category string `json:"category"`
	}

	m, err := cookie.New([]string{secretA})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, m.SetFlash(w, "toasts", []flash{{Message: "Saved", Category: "success"}}))
	r := roundTrip(w)

	read := httptest.NewRecorder()
	var got []flash
	require.NoError(t, m.GetFlash(read, r, "toasts", &got))
	assert.Equal(t, []flash{{Message: "Saved", Category: "success"}}, got)

	cs := read.Result().Cookies()
	require.Len(t, cs, 1)
	assert.Equal(t, -1, cs[0].MaxAge, "flash is deleted after reading")

	err = m.GetFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), "toasts", &got)
	assert.ErrorIs(t, err, cookie.ErrCookieNotFound)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	_, err := cookie.NewFromConfig(cookie.Config{})
	assert.ErrorIs(t, err, cookie.ErrNoSecret)

	m, err := cookie.NewFromConfig(cookie.Config{
		Secrets: []string{" " + secretA + " "},
		Path:    "/app",
		Secure:  true,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Set(w, "k", "v")
	c := w.Result().Cookies()[0]
	assert.Equal(t, "/app", c.Path)
	assert.True(t, c.Secure)
}
