package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corleone113/waypoint/internal/journal"
	"github.com/corleone113/waypoint/internal/route"
	"github.com/corleone113/waypoint/internal/router"
)

const guardedRoutes = `
routes: [
	{path: "/", name: "home", component: "Home"},
	{path: "/users/:id", name: "user", component: "User"},
	{path: "/old-home", redirect: "/"},
]
`

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	loaded, err := LoadRoutes(writeRoutes(t, guardedRoutes))
	require.NoError(t, err)
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv, err := NewServer(context.Background(), loaded.Configs, cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, CLIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp CLIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// dataField digs a string out of a decoded response payload.
func dataField(t *testing.T, data any, keys ...string) any {
	t.Helper()
	v := data
	for _, k := range keys {
		m, ok := v.(map[string]any)
		require.True(t, ok, "no object at %q", k)
		v = m[k]
	}
	return v
}

func TestServerHealthz(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	rec, _ := doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServerStartsAtRoot(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	rec, resp := doRequest(t, h, http.MethodGet, "/route", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", dataField(t, resp.Data, "fullPath"))
	assert.Equal(t, "home", dataField(t, resp.Data, "name"))
}

func TestServerNavigateAndGoBack(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	rec, resp := doRequest(t, h, http.MethodPost, "/navigate", `{"to": "/users/7"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "committed", dataField(t, resp.Data, "outcome"))
	assert.Equal(t, "/users/7", dataField(t, resp.Data, "route", "fullPath"))

	_, resp = doRequest(t, h, http.MethodGet, "/history", "")
	assert.EqualValues(t, 2, dataField(t, resp.Data, "length"))
	assert.EqualValues(t, 1, dataField(t, resp.Data, "index"))

	rec, resp = doRequest(t, h, http.MethodPost, "/go", `{"n": -1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", dataField(t, resp.Data, "fullPath"))
}

func TestServerReplace(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	rec, _ := doRequest(t, h, http.MethodPost, "/navigate", `{"to": "/users/1", "replace": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := doRequest(t, h, http.MethodGet, "/history", "")
	assert.EqualValues(t, 1, dataField(t, resp.Data, "length"))
	assert.Equal(t, "/users/1", dataField(t, resp.Data, "current"))
}

func TestServerDuplicateNavigation(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	rec, resp := doRequest(t, h, http.MethodPost, "/navigate", `{"to": "/"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(router.ErrCodeDuplicated), resp.Error.Code)
	assert.Equal(t, "duplicated", dataField(t, resp.Data, "outcome"))
}

func TestServerGuardAbort(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})
	srv.Router().BeforeEach(func(_ context.Context, to, _ *route.Route) route.Decision {
		if strings.HasPrefix(to.Path, "/users/") {
			return route.Abort()
		}
		return route.Next()
	})

	rec, resp := doRequest(t, srv.Handler(), http.MethodPost, "/navigate", `{"to": "/users/1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "aborted", dataField(t, resp.Data, "outcome"))
	assert.Equal(t, "/", dataField(t, resp.Data, "route", "fullPath"))
}

func TestServerBadRequests(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"navigate bad json", http.MethodPost, "/navigate", `{`, http.StatusBadRequest},
		{"navigate missing to", http.MethodPost, "/navigate", `{}`, http.StatusBadRequest},
		{"go out of range", http.MethodPost, "/go", `{"n": -5}`, http.StatusBadRequest},
		{"resolve missing to", http.MethodGet, "/resolve", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/navigate", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := doRequest(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestServerResolve(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	rec, resp := doRequest(t, h, http.MethodGet, "/resolve?to=/old-home", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", dataField(t, resp.Data, "path"))
	assert.Equal(t, "/old-home", dataField(t, resp.Data, "redirectedFrom"))

	rec, resp = doRequest(t, h, http.MethodGet, "/resolve?to=/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoMatch, resp.Error.Code)

	// Resolving never navigates.
	_, resp = doRequest(t, h, http.MethodGet, "/route", "")
	assert.Equal(t, "/", dataField(t, resp.Data, "fullPath"))
}

func TestServerMetrics(t *testing.T) {
	h := newTestServer(t, ServerConfig{}).Handler()

	doRequest(t, h, http.MethodPost, "/navigate", `{"to": "/users/1"}`)
	doRequest(t, h, http.MethodPost, "/navigate", `{"to": "/users/1"}`)

	rec, _ := doRequest(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `waypoint_navigations_total{outcome="committed",trigger="init"} 1`)
	assert.Contains(t, body, `waypoint_navigations_total{outcome="committed",trigger="push"} 1`)
	assert.Contains(t, body, `waypoint_navigations_total{outcome="duplicated",trigger="push"} 1`)
	assert.Contains(t, body, "waypoint_navigations_pending 0")
}

func TestServerHashMode(t *testing.T) {
	h := newTestServer(t, ServerConfig{Mode: router.ModeHash}).Handler()

	_, resp := doRequest(t, h, http.MethodPost, "/navigate", `{"to": "/users/3"}`)
	assert.Equal(t, "/#/users/3", dataField(t, resp.Data, "route", "href"))
}

func TestServerJournal(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	defer j.Close()

	srv := newTestServer(t, ServerConfig{Journal: j, Session: "api"})
	assert.Equal(t, "api", srv.Session())
	doRequest(t, srv.Handler(), http.MethodPost, "/navigate", `{"to": "/users/1"}`)

	navs, err := j.ReadNavigations(ctx, "api")
	require.NoError(t, err)
	require.Len(t, navs, 2)
	assert.Equal(t, "init", navs[0].Trigger)
	assert.Equal(t, "/users/1", navs[1].To)
}

func TestServeCommandErrors(t *testing.T) {
	path := writeRoutes(t, guardedRoutes)

	_, err := execute(NewServeCommand(&RootOptions{Format: "text"}), path, "--mode", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(NewServeCommand(&RootOptions{Format: "text"}), "/nonexistent/routes.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
