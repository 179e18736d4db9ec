package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSessionCookie = "warbler_session"

type testServer struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

// setupServer wires a Server against an in-memory database with no Redis and
// no Prometheus registration, then builds the Fiber app around it.
func setupServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	cfg := &config.Config{
		Port:            "8377",
		Env:             "test",
		JWTSecret:       "test-secret-0123456789-0123456789",
		SessionCookie:   testSessionCookie,
		SessionTTLHours: 1,
	}

	srv := wireDependencies(cfg, db, nil, nil)
	return &testServer{srv: srv, app: srv.App(), db: db}
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (ts *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// signup registers a user through the HTTP surface and returns the user row
// plus the session cookie the response set.
func (ts *testServer) signup(t *testing.T, username string) (*models.User, string) {
	t.Helper()

	form := url.Values{}
	form.Set("username", username)
	form.Set("email", username+"@warbler.test")
	form.Set("password", "testuser")

	resp := ts.do(t, formRequest("POST", "/signup", form))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	cookie := sessionCookie(resp)
	require.NotEmpty(t, cookie, "signup must establish a session")

	var user models.User
	require.NoError(t, ts.db.Where("username = ?", username).First(&user).Error)
	return &user, cookie
}

// sessionCookie extracts the session cookie from a response, or "" if absent.
func sessionCookie(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == testSessionCookie && c.Value != "" {
			return c.Name + "=" + c.Value
		}
	}
	return ""
}

func withCookie(req *http.Request, cookie string) *http.Request {
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return string(body)
}

func (ts *testServer) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, ts.db.Model(model).Count(&n).Error)
	return n
}
