package ploi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jbweber/homelab/ploi/internal/domain"
)

// ListServers fetches every server, sorted case-insensitively by name.
func (c *Client) ListServers(ctx context.Context) ([]domain.Server, error) {
	servers, err := c.listServers(ctx)
	if err != nil {
		c.readFailure(ctx, err, "Failed to fetch servers")
		return nil, err
	}
	c.success(ctx, fmt.Sprintf("Loaded %d servers", len(servers)))
	return servers, nil
}

func (c *Client) listServers(ctx context.Context) ([]domain.Server, error) {
	const op = "list servers"
	body, err := c.do(ctx, op, http.MethodGet, "/servers", true)
	if err != nil {
		return nil, err
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("decode envelope: %w", err)}
	}

	servers := make([]domain.Server, 0, len(env.Data))
	for _, raw := range env.Data {
		s, err := decodeServer(raw)
		if err != nil {
			return nil, &Error{Op: op, Kind: KindNetwork, Err: err}
		}
		servers = append(servers, s)
	}
	SortServers(servers)
	return servers, nil
}

// SortServers orders servers by name, ignoring case. Equal names keep their
// relative order.
func SortServers(servers []domain.Server) {
	sort.SliceStable(servers, func(i, j int) bool {
		return strings.ToLower(servers[i].Name) < strings.ToLower(servers[j].Name)
	})
}

// RebootServer asks the API to restart the server.
func (c *Client) RebootServer(ctx context.Context, serverID int64) error {
	path := fmt.Sprintf("/servers/%d/restart", serverID)
	if _, err := c.do(ctx, "reboot server", http.MethodPost, path, false); err != nil {
		c.actionFailure(ctx, err, "Failed to reboot server", false)
		return err
	}
	c.success(ctx, "Rebooting server...")
	return nil
}

// RestartService restarts one of domain.Services on the server.
func (c *Client) RestartService(ctx context.Context, serverID int64, service domain.Service) error {
	if _, ok := domain.LookupService(service.Key); !ok {
		c.failure(ctx, fmt.Sprintf("Failed to restart %s", service.Label), "")
		return fmt.Errorf("restart %q: %w", service.Key, ErrUnknownService)
	}

	path := fmt.Sprintf("/servers/%d/services/%s/restart", serverID, service.Key)
	if _, err := c.do(ctx, "restart service", http.MethodPost, path, false); err != nil {
		c.actionFailure(ctx, err, fmt.Sprintf("Failed to restart %s", service.Label), false)
		return err
	}
	c.success(ctx, fmt.Sprintf("Restarting %s...", service.Label))
	return nil
}

// RefreshOpCache clears the OPcache on the server. A rejection reason sent by
// the API is surfaced as-is.
func (c *Client) RefreshOpCache(ctx context.Context, serverID int64) error {
	path := fmt.Sprintf("/servers/%d/refresh-opcache", serverID)
	if _, err := c.do(ctx, "refresh opcache", http.MethodPost, path, false); err != nil {
		c.actionFailure(ctx, err, "Failed to refresh OPcache", true)
		return err
	}
	c.success(ctx, "Refreshing OPcache...")
	return nil
}
