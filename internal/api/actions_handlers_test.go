package api

import (
	"net/http"
	"testing"

	"github.com/jbweber/homelab/ploi/internal/notify"
	"github.com/jbweber/homelab/ploi/internal/ploi"
	"github.com/jbweber/homelab/ploi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReboot(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/restart", http.StatusOK, testutil.EmptyJSON)

	w := env.do("POST", "/api/v0/servers/1/reboot")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ActionResponse{Style: notify.StyleSuccess, Title: "Rebooting server..."}, decode[ActionResponse](t, w))
	assert.Equal(t, "Rebooting server...", lastTitle(t, env))
}

func TestReboot_Failure(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/restart", http.StatusInternalServerError, testutil.EmptyJSON)

	w := env.do("POST", "/api/v0/servers/1/reboot")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, ActionResponse{Style: notify.StyleFailure, Title: "Failed to reboot server", Kind: ploi.KindNetwork}, decode[ActionResponse](t, w))
	assert.Len(t, env.notified.All(), 1)
}

func TestReboot_UnknownServer(t *testing.T) {
	env := setupTestAPI(t)
	w := env.do("POST", "/api/v0/servers/7/reboot")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, env.fake.Requests())
}

func TestRestartService(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/services/nginx/restart", http.StatusOK, testutil.EmptyJSON)

	w := env.do("POST", "/api/v0/servers/1/services/nginx/restart")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Restarting Nginx...", decode[ActionResponse](t, w).Title)
	assert.Equal(t, 1, env.fake.Count("POST", "/servers/1/services/nginx/restart"))
}

func TestRestartService_Unknown(t *testing.T) {
	env := setupTestAPI(t)

	w := env.do("POST", "/api/v0/servers/1/services/apache/restart")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown service", decode[ErrorResponse](t, w).Error)
	assert.Empty(t, env.fake.Requests())
}

func TestRefreshOpCache_RejectedWithReason(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/refresh-opcache", http.StatusUnprocessableEntity, `{"errors": ["OPcache is not enabled"]}`)

	w := env.do("POST", "/api/v0/servers/1/refresh-opcache")
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decode[ActionResponse](t, w)
	assert.Equal(t, "OPcache is not enabled", resp.Title)
	assert.Equal(t, ploi.KindResource, resp.Kind)
}

func TestRefreshOpCache_RejectedWithoutReason(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/refresh-opcache", http.StatusUnprocessableEntity, `{"message": "nope"}`)

	w := env.do("POST", "/api/v0/servers/1/refresh-opcache")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Failed to refresh OPcache", decode[ActionResponse](t, w).Title)
}

func TestDeploySite_Cached(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/sites/10/deploy", http.StatusOK, testutil.EmptyJSON)

	w := env.do("POST", "/api/v0/servers/1/sites/10/deploy")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Deploying blog.example.com", decode[ActionResponse](t, w).Title)
	assert.Equal(t, 0, env.fake.Count("GET", "/servers/1/sites/10"), "cached site needs no lookup")
}

func TestDeploySite_LooksUpUncachedSite(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers/1/sites/12", http.StatusOK, `{"data": {"id": 12, "domain": "new.example.com"}}`)
	env.fake.Handle("POST", "/servers/1/sites/12/deploy", http.StatusOK, testutil.EmptyJSON)

	w := env.do("POST", "/api/v0/servers/1/sites/12/deploy")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Deploying new.example.com", decode[ActionResponse](t, w).Title)

	// the lookup is silent, only the deploy outcome is reported
	require.Len(t, env.notified.All(), 1)
}

func TestDeploySite_UnknownSite(t *testing.T) {
	env := setupTestAPI(t)

	w := env.do("POST", "/api/v0/servers/1/sites/99/deploy")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Site not found", decode[ErrorResponse](t, w).Error)
	assert.Equal(t, 0, env.fake.Count("POST", "/servers/1/sites/99/deploy"))
	assert.Empty(t, env.notified.All())
}

func TestDeploySite_LookupFailure(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers/1/sites/12", http.StatusInternalServerError, testutil.EmptyJSON)

	w := env.do("POST", "/api/v0/servers/1/sites/12/deploy")
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decode[ActionResponse](t, w)
	assert.Equal(t, notify.StyleFailure, resp.Style)
	assert.Equal(t, "Failed to fetch site", resp.Title)
	assert.Equal(t, ploi.KindNetwork, resp.Kind)
	assert.Equal(t, 0, env.fake.Count("POST", "/servers/1/sites/12/deploy"))

	require.Len(t, env.notified.All(), 1)
	assert.Equal(t, "Failed to fetch site", env.notified.All()[0].Title)
}

func TestFlushFastCGICache_LookupRejectedKey(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("GET", "/servers/1/sites/12", http.StatusUnprocessableEntity, testutil.InvalidKeyJSON)

	w := env.do("POST", "/api/v0/servers/1/sites/12/fastcgi-cache/flush")
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decode[ActionResponse](t, w)
	assert.Equal(t, "Wrong API key used", resp.Title)
	assert.Equal(t, ploi.KindAuth, resp.Kind)
	assert.Equal(t, 0, env.fake.Count("POST", "/servers/1/sites/12/fastcgi-cache/flush"))
}

func TestFlushFastCGICache_DeployInProgress(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/sites/11/fastcgi-cache/flush", http.StatusUnprocessableEntity, `{"errors": ["Deploy in progress"]}`)

	w := env.do("POST", "/api/v0/servers/1/sites/11/fastcgi-cache/flush")
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decode[ActionResponse](t, w)
	assert.Equal(t, notify.StyleFailure, resp.Style)
	assert.Equal(t, "Deploy in progress", resp.Title)
	assert.Equal(t, ploi.KindResource, resp.Kind)
}

func TestFlushFastCGICache(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/sites/11/fastcgi-cache/flush", http.StatusOK, testutil.EmptyJSON)

	w := env.do("POST", "/api/v0/servers/1/sites/11/fastcgi-cache/flush")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Flushing FastCGI Cache", decode[ActionResponse](t, w).Title)
}

func TestActions_SendBearerToken(t *testing.T) {
	env := setupTestAPI(t)
	env.fake.Handle("POST", "/servers/1/restart", http.StatusOK, testutil.EmptyJSON)

	env.do("POST", "/api/v0/servers/1/reboot")

	reqs := env.fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer test-token", reqs[0].Header.Get("Authorization"))
	assert.NotEmpty(t, reqs[0].Header.Get("X-Request-Id"))
}
