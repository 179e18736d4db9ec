package server

import (
	"net/http/httptest"
	"testing"

	"warbler/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSessionsGaugeTracksLoginLogout(t *testing.T) {
	ts := setupServer(t)

	before := testutil.ToFloat64(observability.SessionsActive)

	_, cookie := ts.signup(t, "gaugebird")
	require.Equal(t, before+1, testutil.ToFloat64(observability.SessionsActive))

	resp := ts.do(t, withCookie(httptest.NewRequest("POST", "/logout", nil), cookie))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, before, testutil.ToFloat64(observability.SessionsActive))

	// Logging out without ever logging in leaves the gauge alone.
	resp = ts.do(t, httptest.NewRequest("POST", "/logout", nil))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, before, testutil.ToFloat64(observability.SessionsActive))
}
