package api

import (
	"net/http"

	"github.com/jbweber/homelab/ploi/internal/coordinator"
	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/jbweber/homelab/ploi/internal/notify"
)

// ServersResponse is the current server list and how it was obtained
type ServersResponse struct {
	State   coordinator.State `json:"state"`
	Servers []domain.Server   `json:"servers"`
}

// SitesResponse is a server's cached site list
type SitesResponse struct {
	ServerID int64         `json:"serverId"`
	Cached   bool          `json:"cached"`
	Sites    []domain.Site `json:"sites"`
}

// FocusResponse reports whether focusing a server fetched its sites
type FocusResponse struct {
	Prefetched bool `json:"prefetched"`
}

// RefreshResponse reports whether the server list was replaced
type RefreshResponse struct {
	Refreshed bool              `json:"refreshed"`
	State     coordinator.State `json:"state"`
}

// SSHResponse holds the connection details shown for a server
type SSHResponse struct {
	IPAddress string `json:"ipAddress"`
	SSHURL    string `json:"sshUrl"`
	PanelURL  string `json:"panelUrl"`
}

func (a *API) serversResponse() ServersResponse {
	return ServersResponse{State: a.servers.State(), Servers: a.servers.Servers()}
}

// listServersHandler handles GET /api/v0/servers.
func (a *API) listServersHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.serversResponse())
}

// getServerHandler handles GET /api/v0/servers/{id}.
func (a *API) getServerHandler(w http.ResponseWriter, r *http.Request) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return
	}
	a.writeJSON(w, http.StatusOK, server)
}

// focusServerHandler handles POST /api/v0/servers/{id}/focus.
//
// Selecting a server prefetches its site list into the cache unless an entry
// already exists. The fetched list shows up in /sites after the next start.
func (a *API) focusServerHandler(w http.ResponseWriter, r *http.Request) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return
	}
	prefetched := a.servers.PrefetchSites(r.Context(), server.ID)
	a.writeJSON(w, http.StatusOK, FocusResponse{Prefetched: prefetched})
}

// listSitesHandler handles GET /api/v0/servers/{id}/sites.
// Sites are served from the hydration snapshot, never from the network.
func (a *API) listSitesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		a.writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}
	sites, cached := a.servers.CachedSites(id)
	a.writeJSON(w, http.StatusOK, SitesResponse{ServerID: id, Cached: cached, Sites: sites})
}

// getSiteHandler handles GET /api/v0/servers/{id}/sites/{siteId} with a live fetch.
func (a *API) getSiteHandler(w http.ResponseWriter, r *http.Request) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return
	}
	siteID, ok := parseID(r, "siteId")
	if !ok {
		a.writeError(w, http.StatusBadRequest, "Invalid site ID")
		return
	}

	rec := &notify.Recorder{}
	site, err := a.client.WithNotifier(notify.Multi{a.notifier, rec}).GetSite(r.Context(), server.ID, siteID)
	if err != nil {
		a.writeOutcome(w, rec, err)
		return
	}
	a.writeJSON(w, http.StatusOK, site)
}

// sshHandler handles GET /api/v0/servers/{id}/ssh.
func (a *API) sshHandler(w http.ResponseWriter, r *http.Request) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return
	}
	a.writeJSON(w, http.StatusOK, SSHResponse{
		IPAddress: server.IPAddress,
		SSHURL:    server.SSHURL(a.sshUser),
		PanelURL:  server.PanelURL(a.panelURL),
	})
}

// refreshHandler handles POST /api/v0/refresh.
func (a *API) refreshHandler(w http.ResponseWriter, r *http.Request) {
	refreshed := a.servers.Refresh(r.Context())
	a.writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: refreshed, State: a.servers.State()})
}
