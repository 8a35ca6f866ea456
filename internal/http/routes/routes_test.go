package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/briangreenhill/xui-console/internal/apiclient"
	"github.com/briangreenhill/xui-console/internal/auth"
	"github.com/briangreenhill/xui-console/internal/db"
	"github.com/briangreenhill/xui-console/web"
)

type memAdmins struct {
	mu    sync.Mutex
	users map[uuid.UUID]db.AdminUser
}

func (m *memAdmins) GetActiveAdminByUsername(ctx context.Context, username string) (db.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username && u.IsActive {
			return u, nil
		}
	}
	return db.AdminUser{}, db.ErrNotFound
}

func (m *memAdmins) GetAdmin(ctx context.Context, id uuid.UUID) (db.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.AdminUser{}, db.ErrNotFound
	}
	return u, nil
}

func (m *memAdmins) CreateAdmin(ctx context.Context, arg db.CreateAdminParams) (db.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := db.AdminUser{ID: uuid.New(), Username: arg.Username, PasswordHash: arg.PasswordHash, IsActive: true}
	m.users[u.ID] = u
	return u, nil
}

func (m *memAdmins) UpdateAdminPassword(ctx context.Context, arg db.UpdateAdminPasswordParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[arg.ID]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = arg.PasswordHash
	m.users[arg.ID] = u
	return nil
}

func (m *memAdmins) CountAdmins(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

type staticNodes []db.Node

func (n staticNodes) ListNodes(ctx context.Context) ([]db.Node, error) {
	return n, nil
}

type testEnv struct {
	srv    *Server
	ts     *httptest.Server
	client *http.Client
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T, apiOpts ...apiclient.Option) *testEnv {
	t.Helper()

	svc := auth.NewService(&memAdmins{users: make(map[uuid.UUID]db.AdminUser)}, nil).WithCost(bcrypt.MinCost)
	_, err := svc.CreateAdmin(context.Background(), "admin", "correct-horse")
	require.NoError(t, err)

	tmpl, err := web.Templates()
	require.NoError(t, err)

	nodes := staticNodes{
		{ID: uuid.New(), Name: "edge-1", Address: "10.0.0.1", Port: 443, Enabled: true, CreatedAt: time.Now()},
		{ID: uuid.New(), Name: "edge-2", Address: "10.0.0.2", Port: 443, Enabled: false, CreatedAt: time.Now()},
	}

	// the console calls its own API, so the server starts before the router
	// that needs its URL exists
	var s *Server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Router.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	reg := prometheus.NewRegistry()
	s = New(ServerOptions{
		Sess:       scs.New(),
		Tmpl:       tmpl,
		Auth:       svc,
		Nodes:      nodes,
		Logger:     zerolog.Nop(),
		Registry:   reg,
		APIBaseURL: ts.URL,
		APIOptions: apiOpts,
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{srv: s, ts: ts, client: client, reg: reg}
}

func (e *testEnv) get(t *testing.T, p string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + p)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) postForm(t *testing.T, p string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.ts.URL+p, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp, _ := e.postForm(t, "/login", url.Values{"username": {"admin"}, "password": {"correct-horse"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestProtectedPageRedirectsAnonymousToLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, p := range []string{"/", "/nodes"} {
		resp, _ := env.get(t, p)
		assert.Equal(t, http.StatusFound, resp.StatusCode, p)
		assert.Equal(t, "/login", resp.Header.Get("Location"), p)
	}
}

func TestLoginPageRendersForAnonymous(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.get(t, "/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sign in")
}

func TestLoginFailureShowsMessage(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.postForm(t, "/login", url.Values{"username": {"admin"}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invalid username or password")
	assert.Contains(t, body, `value="admin"`)

	// a rejected login on the login page is not an expired session
	assert.Equal(t, 0.0, testutil.ToFloat64(env.srv.Metrics.UnauthorizedRedirects))
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, body := env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Signed in as <strong>admin</strong>")
	assert.Contains(t, body, "2 node(s), 1 enabled.")

	resp, body = env.get(t, "/nodes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "edge-1")
	assert.Contains(t, body, "10.0.0.2:443")

	// signed-in visitors are sent away from the login page
	resp, _ = env.get(t, "/login")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, _ := env.postForm(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = env.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestAPIRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/nodes")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"message":"unauthorized"}`, body)

	resp, body = env.get(t, "/api/auth/check")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"authenticated":false}`, body)
}

func TestAPILogin(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Post(env.ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"nope-nope"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"message":"Invalid username or password"}`, string(body))

	resp, err = env.client.Post(env.ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"admin"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = env.client.Post(env.ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"correct-horse"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body2 := env.get(t, "/api/auth/check")
	assert.Contains(t, body2, `"authenticated":true`)
	assert.Contains(t, body2, `"username":"admin"`)
}

func TestExpiredSessionDuringPageLoadRedirects(t *testing.T) {
	// the session passes the guard's check, then the data call is refused
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == apiclient.AuthCheckPath {
			_, _ = w.Write([]byte(`{"authenticated":true}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
	}))
	t.Cleanup(api.Close)

	env := newTestEnv(t, apiclient.WithBaseURL(api.URL))

	resp, _ := env.get(t, "/nodes")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// two concurrent calls fail on the dashboard, one redirect
	resp, _ = env.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.Equal(t, 2.0, testutil.ToFloat64(env.srv.Metrics.UnauthorizedRedirects))
}

func TestSpoofedHostDoesNotRedirectAPICalls(t *testing.T) {
	var hits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"authenticated":true}`))
	}))
	t.Cleanup(foreign.Close)

	env := newTestEnv(t)

	for _, p := range []string{"/nodes", "/"} {
		req, err := http.NewRequest(http.MethodGet, env.ts.URL+p, nil)
		require.NoError(t, err)
		req.Host = strings.TrimPrefix(foreign.URL, "http://")
		req.AddCookie(&http.Cookie{Name: "session", Value: "x"})

		resp, err := env.client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusFound, resp.StatusCode, p)
		assert.Equal(t, "/login", resp.Header.Get("Location"), p)
	}
	assert.Zero(t, hits.Load(), "the Host header must not choose where API calls go")
}

func TestAuthCheckFailureFailsClosedAndOpen(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(api.Close)

	env := newTestEnv(t, apiclient.WithBaseURL(api.URL))

	resp, _ := env.get(t, "/nodes")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body := env.get(t, "/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sign in")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/nodes")

	resp, body := env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `xui_console_guard_decisions_total{class="protected",outcome="redirect_login"} 1`)
	assert.Contains(t, body, `xui_console_auth_checks_total{result="anonymous"} 1`)
}
