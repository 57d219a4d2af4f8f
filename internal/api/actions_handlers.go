package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/jbweber/homelab/ploi/internal/notify"
	"github.com/jbweber/homelab/ploi/internal/ploi"
)

// ActionResponse carries the notification an action produced
type ActionResponse struct {
	Style   notify.Style `json:"style"`
	Title   string       `json:"title"`
	Message string       `json:"message,omitempty"`
	Kind    ploi.Kind    `json:"kind,omitempty"`
}

// action runs fn against a client whose notifications are captured for the
// response and forwarded to the API notifier.
func (a *API) action(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, c *ploi.Client) error) {
	rec := &notify.Recorder{}
	err := fn(r.Context(), a.client.WithNotifier(notify.Multi{a.notifier, rec}))
	a.writeOutcome(w, rec, err)
}

// writeOutcome answers 200 with the success notification, or 502 with the
// failure notification and the error kind.
func (a *API) writeOutcome(w http.ResponseWriter, rec *notify.Recorder, err error) {
	n, ok := rec.Last()
	if !ok {
		n = notify.Failure("Request failed", "")
		if err == nil {
			n = notify.Success("Done")
		}
	}

	resp := ActionResponse{Style: n.Style, Title: n.Title, Message: n.Message}
	if err != nil {
		resp.Kind = ploi.KindOf(err)
		a.writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// rebootHandler handles POST /api/v0/servers/{id}/reboot.
func (a *API) rebootHandler(w http.ResponseWriter, r *http.Request) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return
	}
	a.action(w, r, func(ctx context.Context, c *ploi.Client) error {
		return c.RebootServer(ctx, server.ID)
	})
}

// restartServiceHandler handles POST /api/v0/servers/{id}/services/{service}/restart.
// Only mysql, nginx and supervisor can be restarted.
func (a *API) restartServiceHandler(w http.ResponseWriter, r *http.Request) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return
	}
	service, found := domain.LookupService(chi.URLParam(r, "service"))
	if !found {
		a.writeError(w, http.StatusBadRequest, "Unknown service")
		return
	}
	a.action(w, r, func(ctx context.Context, c *ploi.Client) error {
		return c.RestartService(ctx, server.ID, service)
	})
}

// refreshOpCacheHandler handles POST /api/v0/servers/{id}/refresh-opcache.
func (a *API) refreshOpCacheHandler(w http.ResponseWriter, r *http.Request) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return
	}
	a.action(w, r, func(ctx context.Context, c *ploi.Client) error {
		return c.RefreshOpCache(ctx, server.ID)
	})
}

// deploySiteHandler handles POST /api/v0/servers/{id}/sites/{siteId}/deploy.
func (a *API) deploySiteHandler(w http.ResponseWriter, r *http.Request) {
	server, site, ok := a.siteFromRequest(w, r)
	if !ok {
		return
	}
	a.action(w, r, func(ctx context.Context, c *ploi.Client) error {
		return c.DeploySite(ctx, site, server.ID)
	})
}

// flushFastCGICacheHandler handles POST /api/v0/servers/{id}/sites/{siteId}/fastcgi-cache/flush.
func (a *API) flushFastCGICacheHandler(w http.ResponseWriter, r *http.Request) {
	server, site, ok := a.siteFromRequest(w, r)
	if !ok {
		return
	}
	a.action(w, r, func(ctx context.Context, c *ploi.Client) error {
		return c.FlushFastCGICache(ctx, site, server.ID)
	})
}

// siteFromRequest resolves {siteId} from the cached site list, falling back
// to a live lookup for sites that were never cached. Only a failed lookup is
// reported; a 404 from the API answers "Site not found".
func (a *API) siteFromRequest(w http.ResponseWriter, r *http.Request) (domain.Server, domain.Site, bool) {
	server, ok := a.serverFromRequest(w, r)
	if !ok {
		return domain.Server{}, domain.Site{}, false
	}
	siteID, ok := parseID(r, "siteId")
	if !ok {
		a.writeError(w, http.StatusBadRequest, "Invalid site ID")
		return domain.Server{}, domain.Site{}, false
	}

	sites, _ := a.servers.CachedSites(server.ID)
	for _, s := range sites {
		if s.ID == siteID {
			return server, s, true
		}
	}

	rec := &notify.Recorder{}
	site, err := a.client.WithNotifier(notify.FailuresOnly(rec)).GetSite(r.Context(), server.ID, siteID)
	if err != nil {
		var apiErr *ploi.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			a.writeError(w, http.StatusNotFound, "Site not found")
			return domain.Server{}, domain.Site{}, false
		}
		// the action never ran, so the lookup failure is the outcome
		if n, ok := rec.Last(); ok {
			a.notifier.Notify(r.Context(), n)
		}
		a.writeOutcome(w, rec, err)
		return domain.Server{}, domain.Site{}, false
	}
	return server, site, true
}
