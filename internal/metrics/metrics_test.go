package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LoginAttempt(ResultSuccess)
	m.LoginAttempt(ResultFailure)
	m.LoginAttempt(ResultFailure)
	m.TokenRefresh(ResultRevoked)
	m.TokenVerification("access", ResultExpired)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenRefreshes.WithLabelValues(ResultRevoked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenVerifications.WithLabelValues("access", ResultExpired)))
}

func TestNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LoginAttempt(ResultSuccess)
		m.TokenRefresh(ResultSuccess)
		m.TokenVerification("refresh", ResultInvalid)
	})

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/accounts/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for _, id := range []string{"a", "b"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/accounts/"+id, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/accounts/:id", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}
