package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/jbweber/homelab/ploi/internal/notify"
)

var (
	// ErrServerNotFound is returned when no server matches the argument
	ErrServerNotFound = errors.New("server not found")

	// ErrSiteNotFound is returned when no site of the server matches the argument
	ErrSiteNotFound = errors.New("site not found")
)

// resolveServer finds a server by id, name or IP address. The cached list is
// tried first; the API is asked only when the cache does not know the server.
func (a *app) resolveServer(ctx context.Context, ref string) (domain.Server, error) {
	a.coord.Hydrate(ctx)
	if s, ok := findServer(a.coord.Servers(), ref); ok {
		return s, nil
	}

	if !a.coord.Refresh(ctx) {
		if err := ctx.Err(); err != nil {
			return domain.Server{}, err
		}
		return domain.Server{}, reported(fmt.Errorf("resolve %q: %w", ref, ErrServerNotFound))
	}
	if s, ok := findServer(a.coord.Servers(), ref); ok {
		return s, nil
	}
	return domain.Server{}, fmt.Errorf("%w: %q", ErrServerNotFound, ref)
}

// resolveSite finds a site of server by id or domain, from the cached site
// list or a live list.
func (a *app) resolveSite(ctx context.Context, server domain.Server, ref string) (domain.Site, error) {
	cached, _ := a.coord.CachedSites(server.ID)
	if s, ok := findSite(cached, ref); ok {
		return s, nil
	}

	live, err := a.client.WithNotifier(notify.FailuresOnly(a.notifier)).ListSites(ctx, server.ID)
	if err != nil {
		return domain.Site{}, reported(err)
	}
	if s, ok := findSite(live, ref); ok {
		return s, nil
	}
	return domain.Site{}, fmt.Errorf("%w: %q on %s", ErrSiteNotFound, ref, server.Name)
}

func findServer(servers []domain.Server, ref string) (domain.Server, bool) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, s := range servers {
			if s.ID == id {
				return s, true
			}
		}
	}
	for _, s := range servers {
		if strings.EqualFold(s.Name, ref) || s.IPAddress == ref {
			return s, true
		}
	}
	return domain.Server{}, false
}

func findSite(sites []domain.Site, ref string) (domain.Site, bool) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, s := range sites {
			if s.ID == id {
				return s, true
			}
		}
	}
	for _, s := range sites {
		if strings.EqualFold(s.Domain, ref) {
			return s, true
		}
	}
	return domain.Site{}, false
}
