package environment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CallMeMhz/feature-gating/pkg/environment"
)

func TestParse(t *testing.T) {
	t.Parallel()
	cases := map[string]environment.Environment{
		"production": environment.Production,
		"PROD":       environment.Production,
		"staging":    environment.Staging,
		" stage ":    environment.Staging,
		"dev":        environment.Development,
		"":           environment.Development,
		"qa":         environment.Development,
	}
	for in, want := range cases {
		assert.Equal(t, want, environment.Parse(in), "input %q", in)
	}
	assert.True(t, environment.Production.IsProduction())
	assert.False(t, environment.Staging.IsProduction())
}

func TestContext(t *testing.T) {
	t.Parallel()
	assert.Equal(t, environment.Development, environment.FromContext(context.Background()))

	ctx := environment.WithContext(context.Background(), environment.Staging)
	assert.Equal(t, environment.Staging, environment.FromContext(ctx))

	attr, ok := environment.LoggerExtractor()(ctx)
	assert.True(t, ok)
	assert.Equal(t, "env", attr.Key)
	assert.Equal(t, "staging", attr.Value.String())

	_, ok = environment.LoggerExtractor()(context.Background())
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	var got environment.Environment
	h := environment.Middleware(environment.Production)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = environment.FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, environment.Production, got)
}
