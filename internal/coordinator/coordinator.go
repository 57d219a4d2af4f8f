// Package coordinator renders the server list from the cache first, refreshes
// it from the API in the background, and prefetches site lists as servers
// are focused.
package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jbweber/homelab/ploi/internal/datastore"
	"github.com/jbweber/homelab/ploi/internal/domain"
)

const (
	// ServersKey is the cache key of the top-level server list.
	ServersKey = "resource-list"

	// SitesKeyPrefix prefixes the cache key of each server's site list.
	SitesKeyPrefix = "resource-sites-"
)

// SitesKey returns the cache key of the site list owned by serverID.
func SitesKey(serverID int64) string {
	return SitesKeyPrefix + strconv.FormatInt(serverID, 10)
}

// State is the lifecycle of the server list.
type State string

const (
	StateEmpty     State = "empty"     // nothing rendered yet
	StateHydrating State = "hydrating" // rendered from cache, refresh pending or failed
	StateReady     State = "ready"     // rendered from the network
)

// Client is the part of the Ploi API client the coordinator needs.
// Errors are treated as "no result"; the client reports them to the user.
type Client interface {
	ListServers(ctx context.Context) ([]domain.Server, error)
	ListSites(ctx context.Context, serverID int64) ([]domain.Site, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// Coordinator owns the in-memory server list and keeps it in sync with the
// cache store and the API.
type Coordinator struct {
	store  datastore.Store
	client Client
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	servers  []domain.Server
	siteData map[string]string // site entries as read at hydration
	subs     map[int]chan []domain.Server
	nextSub  int
}

// New creates a Coordinator in the Empty state.
func New(store datastore.Store, client Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		client:   client,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:    StateEmpty,
		siteData: make(map[string]string),
		subs:     make(map[int]chan []domain.Server),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "coordinator"))
	return c
}

// Start hydrates from the cache, then refreshes from the API in the
// background. The cached list is always published before the network list.
// The returned channel is closed once the refresh has finished.
func (c *Coordinator) Start(ctx context.Context) <-chan struct{} {
	c.Hydrate(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Refresh(ctx)
	}()
	return done
}

// Hydrate reads every cache entry once. The server list entry becomes the
// in-memory list; every other entry is kept as a cached site list.
// A missing or unreadable cache hydrates to an empty list.
func (c *Coordinator) Hydrate(ctx context.Context) {
	entries, err := c.store.GetAll(ctx)
	if err != nil {
		c.logger.Warn("failed to read cache", slog.String("error", err.Error()))
		entries = map[string]string{}
	}
	if ctx.Err() != nil {
		return
	}

	raw, ok := entries[ServersKey]
	delete(entries, ServersKey)

	var servers []domain.Server
	if ok {
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			c.logger.Warn("discarding unreadable server cache", slog.String("error", err.Error()))
			servers = nil
		}
	}
	if servers == nil {
		servers = []domain.Server{}
	}

	c.mu.Lock()
	if c.state == StateEmpty {
		c.state = StateHydrating
	}
	c.servers = servers
	c.siteData = entries
	c.mu.Unlock()

	c.logger.Debug("hydrated from cache",
		slog.Int("servers", len(servers)),
		slog.Int("site_lists", len(entries)))
	c.publish(servers)
}

// Refresh fetches the authoritative server list, replaces the in-memory list
// and writes it through to the cache. It reports whether the list was
// replaced. On failure the current list and state are left untouched.
func (c *Coordinator) Refresh(ctx context.Context) bool {
	servers, err := c.client.ListServers(ctx)
	if err != nil || servers == nil {
		return false
	}
	if ctx.Err() != nil {
		c.logger.Debug("dropping server list for cancelled view")
		return false
	}

	c.mu.Lock()
	c.servers = servers
	c.state = StateReady
	c.mu.Unlock()

	c.publish(servers)

	raw, err := json.Marshal(servers)
	if err != nil {
		c.logger.Warn("failed to encode server list", slog.String("error", err.Error()))
		return true
	}
	if err := c.store.Set(ctx, ServersKey, string(raw)); err != nil {
		c.logger.Warn("failed to cache server list", slog.String("error", err.Error()))
	}
	return true
}

// PrefetchSites fetches and caches the site list of a focused server unless
// it is already cached. It reports whether a network fetch was written.
//
// The fetched list is only written to the store; CachedSites keeps serving
// the hydration snapshot until the next Hydrate.
func (c *Coordinator) PrefetchSites(ctx context.Context, serverID int64) bool {
	key := SitesKey(serverID)
	if ctx.Err() != nil {
		return false
	}

	c.mu.Lock()
	_, cached := c.siteData[key]
	server, found := c.lookup(serverID)
	c.mu.Unlock()

	if cached {
		return false
	}
	if _, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return false
	}
	if !found {
		// list still loading
		return false
	}

	sites, err := c.client.ListSites(ctx, server.ID)
	if err != nil || sites == nil {
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	raw, err := json.Marshal(sites)
	if err != nil {
		c.logger.Warn("failed to encode site list", slog.String("error", err.Error()))
		return false
	}
	if err := c.store.Set(ctx, key, string(raw)); err != nil {
		c.logger.Warn("failed to cache site list", slog.Int64("server_id", serverID), slog.String("error", err.Error()))
		return false
	}
	c.logger.Debug("cached site list", slog.Int64("server_id", serverID), slog.Int("sites", len(sites)))
	return true
}

// Servers returns a copy of the current server list.
func (c *Coordinator) Servers() []domain.Server {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Server, len(c.servers))
	copy(out, c.servers)
	return out
}

// Server returns the server with the given id from the current list.
func (c *Coordinator) Server(id int64) (domain.Server, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(id)
}

// State returns the lifecycle state of the server list.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CachedSites returns the site list of serverID as read at hydration.
// A missing or unreadable entry yields an empty list and false.
func (c *Coordinator) CachedSites(serverID int64) ([]domain.Site, bool) {
	c.mu.Lock()
	raw, ok := c.siteData[SitesKey(serverID)]
	c.mu.Unlock()
	if !ok {
		return []domain.Site{}, false
	}

	var sites []domain.Site
	if err := json.Unmarshal([]byte(raw), &sites); err != nil {
		c.logger.Warn("discarding unreadable site cache", slog.Int64("server_id", serverID), slog.String("error", err.Error()))
		return []domain.Site{}, false
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	return sites, true
}

// Subscribe returns a channel receiving every published server list. Only
// the latest undelivered list is kept for slow readers. Call cancel to stop.
func (c *Coordinator) Subscribe() (<-chan []domain.Server, func()) {
	ch := make(chan []domain.Server, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Coordinator) publish(servers []domain.Server) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		snapshot := make([]domain.Server, len(servers))
		copy(snapshot, servers)
		// drop the stale undelivered list, if any
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// lookup must be called with c.mu held.
func (c *Coordinator) lookup(id int64) (domain.Server, bool) {
	for _, s := range c.servers {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Server{}, false
}
