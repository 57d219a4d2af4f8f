package ploi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/jbweber/homelab/ploi/internal/domain"
)

// ListSites fetches the sites of a server, sorted by domain.
func (c *Client) ListSites(ctx context.Context, serverID int64) ([]domain.Site, error) {
	sites, err := c.listSites(ctx, serverID)
	if err != nil {
		c.readFailure(ctx, err, "Failed to fetch sites")
		return nil, err
	}
	c.success(ctx, fmt.Sprintf("Loaded %d sites", len(sites)))
	return sites, nil
}

func (c *Client) listSites(ctx context.Context, serverID int64) ([]domain.Site, error) {
	const op = "list sites"
	body, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/servers/%d/sites", serverID), true)
	if err != nil {
		return nil, err
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("decode envelope: %w", err)}
	}

	sites := make([]domain.Site, 0, len(env.Data))
	for _, raw := range env.Data {
		s, err := decodeSite(raw)
		if err != nil {
			return nil, &Error{Op: op, Kind: KindNetwork, Err: err}
		}
		sites = append(sites, s)
	}
	SortSites(sites)
	return sites, nil
}

// SortSites orders sites by domain. Equal domains keep their relative order.
func SortSites(sites []domain.Site) {
	sort.SliceStable(sites, func(i, j int) bool {
		return sites[i].Domain < sites[j].Domain
	})
}

// GetSite fetches a single site.
func (c *Client) GetSite(ctx context.Context, serverID, siteID int64) (domain.Site, error) {
	site, err := c.getSite(ctx, serverID, siteID)
	if err != nil {
		c.readFailure(ctx, err, "Failed to fetch site")
		return domain.Site{}, err
	}
	c.success(ctx, fmt.Sprintf("Loaded %s", site.Domain))
	return site, nil
}

func (c *Client) getSite(ctx context.Context, serverID, siteID int64) (domain.Site, error) {
	const op = "get site"
	body, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/servers/%d/sites/%d", serverID, siteID), true)
	if err != nil {
		return domain.Site{}, err
	}

	var env itemEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Site{}, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return domain.Site{}, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("empty site payload")}
	}

	site, err := decodeSite(env.Data)
	if err != nil {
		return domain.Site{}, &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	return site, nil
}

// DeploySite triggers a deployment of the site.
func (c *Client) DeploySite(ctx context.Context, site domain.Site, serverID int64) error {
	path := fmt.Sprintf("/servers/%d/sites/%d/deploy", serverID, site.ID)
	if _, err := c.do(ctx, "deploy site", http.MethodPost, path, false); err != nil {
		c.actionFailure(ctx, err, fmt.Sprintf("Failed to deploy %s", site.Domain), false)
		return err
	}
	c.success(ctx, fmt.Sprintf("Deploying %s", site.Domain))
	return nil
}

// FlushFastCGICache flushes the FastCGI cache of the site. A rejection reason
// sent by the API is surfaced as-is.
func (c *Client) FlushFastCGICache(ctx context.Context, site domain.Site, serverID int64) error {
	path := fmt.Sprintf("/servers/%d/sites/%d/fastcgi-cache/flush", serverID, site.ID)
	if _, err := c.do(ctx, "flush fastcgi cache", http.MethodPost, path, false); err != nil {
		c.actionFailure(ctx, err, "Failed to flush FastCGI cache", true)
		return err
	}
	c.success(ctx, "Flushing FastCGI Cache")
	return nil
}
