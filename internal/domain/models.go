package domain

import (
	"fmt"
	"strconv"
)

// DefaultPanelURL is the web panel that owns the servers and sites.
const DefaultPanelURL = "https://ploi.io/panel"

// Server represents a server managed through the Ploi API.
// Field names are the normalized camelCase form used in the cache.
type Server struct {
	ID            int64  `json:"id"`            // Unique identifier
	Type          string `json:"type"`          // Server type (e.g., "server", "load-balancer")
	Name          string `json:"name"`          // Server name, used as sort key
	IPAddress     string `json:"ipAddress"`     // Public IP address
	InternalIP    string `json:"internalIp"`    // Private network IP address
	PHPVersion    string `json:"phpVersion"`    // Default PHP version
	MySQLVersion  string `json:"mysqlVersion"`  // Installed MySQL version
	SitesCount    int    `json:"sitesCount"`    // Number of sites on the server
	Status        string `json:"status"`        // Status label (e.g., "active")
	StatusID      int    `json:"statusId"`      // Status code
	CreatedAt     string `json:"createdAt"`     // Creation timestamp as sent by the API
	PHPCLIVersion string `json:"phpCliVersion"` // PHP version used on the CLI
	SSHPort       int    `json:"sshPort"`       // SSH port
	DatabaseType  string `json:"databaseType"`  // Database engine (e.g., "mysql")
	OPcache       bool   `json:"opcache"`       // Whether OPcache is enabled
}

// Site represents a site hosted on a Server.
type Site struct {
	ID            int64          `json:"id"`                 // Unique within the owning server
	ServerID      int64          `json:"serverId,omitempty"` // Foreign key to Server
	Domain        string         `json:"domain"`             // Site domain, used as sort key
	Status        string         `json:"status,omitempty"`   // Status label
	ProjectType   string         `json:"projectType,omitempty"`
	ProjectRoot   string         `json:"projectRoot,omitempty"`
	WebDirectory  string         `json:"webDirectory,omitempty"`
	PHPVersion    string         `json:"phpVersion,omitempty"`
	SystemUser    string         `json:"systemUser,omitempty"`
	HasRepository bool           `json:"hasRepository,omitempty"`
	LastDeployAt  string         `json:"lastDeployAt,omitempty"`
	CreatedAt     string         `json:"createdAt,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"` // Other server-supplied fields, camelCased
}

// Service is a restartable daemon on a server.
type Service struct {
	Key   string // Path segment used by the API
	Label string // Human readable name
}

// Services lists the restartable services in display order.
var Services = []Service{
	{Key: "mysql", Label: "MySQL"},
	{Key: "nginx", Label: "Nginx"},
	{Key: "supervisor", Label: "Supervisor"},
}

// LookupService returns the service registered under key.
func LookupService(key string) (Service, bool) {
	for _, s := range Services {
		if s.Key == key {
			return s, true
		}
	}
	return Service{}, false
}

// SSHURL returns the ssh:// URL for connecting to the server as user.
// The port is omitted when the API did not report one.
func (s Server) SSHURL(user string) string {
	if s.SSHPort == 0 {
		return fmt.Sprintf("ssh://%s@%s", user, s.IPAddress)
	}
	return fmt.Sprintf("ssh://%s@%s:%d", user, s.IPAddress, s.SSHPort)
}

// PanelURL returns the web panel page for the server.
func (s Server) PanelURL(base string) string {
	if base == "" {
		base = DefaultPanelURL
	}
	return base + "/servers/" + strconv.FormatInt(s.ID, 10)
}
