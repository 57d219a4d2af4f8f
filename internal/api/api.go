package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jbweber/homelab/ploi/internal/coordinator"
	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/jbweber/homelab/ploi/internal/notify"
	"github.com/jbweber/homelab/ploi/internal/ploi"
)

// ServerSource is the view of the coordinator the panel API serves from
type ServerSource interface {
	Servers() []domain.Server
	Server(id int64) (domain.Server, bool)
	State() coordinator.State
	CachedSites(serverID int64) ([]domain.Site, bool)
	PrefetchSites(ctx context.Context, serverID int64) bool
	Refresh(ctx context.Context) bool
	Subscribe() (<-chan []domain.Server, func())
}

// Options configures the API
type Options struct {
	SSHUser  string
	PanelURL string
	Notifier notify.Notifier // receives every action outcome in addition to the HTTP response
	Logger   *slog.Logger
}

// API serves the cached server list and forwards actions to Ploi
type API struct {
	servers  ServerSource
	client   *ploi.Client
	notifier notify.Notifier
	sshUser  string
	panelURL string
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewAPI creates a new API instance on top of the coordinator and client
func NewAPI(servers ServerSource, client *ploi.Client, opts Options) *API {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.SSHUser == "" {
		opts.SSHUser = "ploi"
	}
	if opts.PanelURL == "" {
		opts.PanelURL = domain.DefaultPanelURL
	}

	return &API{
		servers:  servers,
		client:   client,
		notifier: opts.Notifier,
		sshUser:  opts.SSHUser,
		panelURL: opts.PanelURL,
		logger:   opts.Logger.With(slog.String("component", "api")),
		upgrader: websocket.Upgrader{
			// the panel only listens on loopback by default
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v0", func(r chi.Router) {
		r.Get("/servers", a.listServersHandler)
		r.Post("/refresh", a.refreshHandler)
		r.Get("/ws", a.serversWSHandler)

		r.Route("/servers/{id}", func(r chi.Router) {
			r.Get("/", a.getServerHandler)
			r.Post("/focus", a.focusServerHandler)
			r.Get("/ssh", a.sshHandler)
			r.Get("/sites", a.listSitesHandler)
			r.Get("/sites/{siteId}", a.getSiteHandler)

			// Server actions
			r.Post("/reboot", a.rebootHandler)
			r.Post("/services/{service}/restart", a.restartServiceHandler)
			r.Post("/refresh-opcache", a.refreshOpCacheHandler)

			// Site actions
			r.Post("/sites/{siteId}/deploy", a.deploySiteHandler)
			r.Post("/sites/{siteId}/fastcgi-cache/flush", a.flushFastCGICacheHandler)
		})
	})
}

// NewRouter builds the router served by `ploi serve`.
func NewRouter(a *API) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	a.RegisterRoutes(r)

	// Health check endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintln(w, "Ploi panel is running!"); err != nil {
			a.logger.Warn("failed to write response", slog.String("error", err.Error()))
		}
	})
	return r
}
