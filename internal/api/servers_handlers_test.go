package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/jbweber/homelab/ploi/internal/coordinator"
	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/jbweber/homelab/ploi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListServers_FromCache(t *testing.T) {
	env := setupTestAPI(t)

	w := env.do("GET", "/api/v0/servers")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ServersResponse](t, w)
	assert.Equal(t, coordinator.StateHydrating, resp.State)
	assert.Equal(t, []domain.Server{cachedServer}, resp.Servers)
	assert.Empty(t, env.fake.Requests(), "listing must not hit the network")
}

func TestListServers_AfterRefresh(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers", http.StatusOK, testutil.ServersJSON)

	w := env.do("POST", "/api/v0/refresh")
	require.Equal(t, http.StatusOK, w.Code)
	refresh := decode[RefreshResponse](t, w)
	assert.True(t, refresh.Refreshed)
	assert.Equal(t, coordinator.StateReady, refresh.State)

	resp := decode[ServersResponse](t, env.do("GET", "/api/v0/servers"))
	require.Len(t, resp.Servers, 2)
	assert.Equal(t, "Alpha", resp.Servers[0].Name)
	assert.Equal(t, "web-2", resp.Servers[1].Name)
}

func TestRefresh_FailureKeepsCachedList(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers", http.StatusInternalServerError, testutil.EmptyJSON)

	refresh := decode[RefreshResponse](t, env.do("POST", "/api/v0/refresh"))
	assert.False(t, refresh.Refreshed)
	assert.Equal(t, coordinator.StateHydrating, refresh.State)

	resp := decode[ServersResponse](t, env.do("GET", "/api/v0/servers"))
	assert.Equal(t, []domain.Server{cachedServer}, resp.Servers)
}

func TestGetServer(t *testing.T) {
	env := setupTestAPI(t)

	w := env.do("GET", "/api/v0/servers/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cachedServer, decode[domain.Server](t, w))

	w = env.do("GET", "/api/v0/servers/99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Server not found", decode[ErrorResponse](t, w).Error)

	w = env.do("GET", "/api/v0/servers/-4")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSSHHandler(t *testing.T) {
	env := setupTestAPI(t)

	w := env.do("GET", "/api/v0/servers/1/ssh")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, SSHResponse{
		IPAddress: "10.0.0.1",
		SSHURL:    "ssh://ploi@10.0.0.1:2222",
		PanelURL:  "https://ploi.io/panel/servers/1",
	}, decode[SSHResponse](t, w))
}

func TestListSites_Cached(t *testing.T) {
	env := setupTestAPI(t)

	w := env.do("GET", "/api/v0/servers/1/sites")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SitesResponse](t, w)
	assert.True(t, resp.Cached)
	assert.Equal(t, int64(1), resp.ServerID)
	assert.Equal(t, cachedSites, resp.Sites)
	assert.Empty(t, env.fake.Requests())
}

func TestListSites_NotCached(t *testing.T) {
	env := setupTestAPI(t)

	resp := decode[SitesResponse](t, env.do("GET", "/api/v0/servers/2/sites"))
	assert.False(t, resp.Cached)
	assert.NotNil(t, resp.Sites)
	assert.Empty(t, resp.Sites)
}

func TestFocusServer_PrefetchesOnce(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers", http.StatusOK, testutil.ServersJSON)
	env.fake.Handle("GET", "/servers/2/sites", http.StatusOK, testutil.SitesJSON)
	require.True(t, env.coord.Refresh(context.Background()))

	w := env.do("POST", "/api/v0/servers/2/focus")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[FocusResponse](t, w).Prefetched)

	w = env.do("POST", "/api/v0/servers/2/focus")
	assert.False(t, decode[FocusResponse](t, w).Prefetched)
	assert.Equal(t, 1, env.fake.Count("GET", "/servers/2/sites"))

	// the snapshot taken at hydration is still what /sites serves
	resp := decode[SitesResponse](t, env.do("GET", "/api/v0/servers/2/sites"))
	assert.False(t, resp.Cached)
}

func TestFocusServer_CachedIsNoop(t *testing.T) {
	env := setupTestAPI(t)

	w := env.do("POST", "/api/v0/servers/1/focus")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[FocusResponse](t, w).Prefetched)
	assert.Empty(t, env.fake.Requests())
}

func TestFocusServer_Unknown(t *testing.T) {
	env := setupTestAPI(t)
	w := env.do("POST", "/api/v0/servers/42/focus")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSite_Live(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers/1/sites/10", http.StatusOK, testutil.SiteJSON)

	w := env.do("GET", "/api/v0/servers/1/sites/10")
	require.Equal(t, http.StatusOK, w.Code)

	site := decode[domain.Site](t, w)
	assert.Equal(t, "blog.example.com", site.Domain)
	assert.True(t, site.HasRepository)
	assert.Equal(t, "Loaded blog.example.com", lastTitle(t, env))
}

func TestGetSite_InvalidKey(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers/1/sites/10", http.StatusUnprocessableEntity, testutil.InvalidKeyJSON)

	w := env.do("GET", "/api/v0/servers/1/sites/10")
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decode[ActionResponse](t, w)
	assert.Equal(t, "Wrong API key used", resp.Title)
	assert.Equal(t, "Please remove your API key in the preferences and enter a valid one", resp.Message)
	assert.Equal(t, "auth", string(resp.Kind))
}

func TestGetSite_InvalidSiteID(t *testing.T) {
	env := setupTestAPI(t)
	w := env.do("GET", "/api/v0/servers/1/sites/x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid site ID", decode[ErrorResponse](t, w).Error)
}

func lastTitle(t *testing.T, env *testEnv) string {
	t.Helper()
	n, ok := env.notified.Last()
	require.True(t, ok, "expected a notification")
	return n.Title
}
