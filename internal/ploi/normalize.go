package ploi

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/jbweber/homelab/ploi/internal/domain"
)

// listEnvelope is the {"data": [...]} wrapper used by list endpoints.
type listEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

// itemEnvelope is the {"data": {...}} wrapper used by single-item endpoints.
type itemEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// serverPayload mirrors a server as sent by the API.
type serverPayload struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	IPAddress     string `json:"ip_address"`
	InternalIP    string `json:"internal_ip"`
	PHPVersion    string `json:"php_version"`
	MySQLVersion  string `json:"mysql_version"`
	SitesCount    int    `json:"sites_count"`
	Status        string `json:"status"`
	StatusID      int    `json:"status_id"`
	CreatedAt     string `json:"created_at"`
	PHPCLIVersion string `json:"php_cli_version"`
	SSHPort       int    `json:"ssh_port"`
	DatabaseType  string `json:"database_type"`
	OPcache       bool   `json:"opcache"`
}

func (p serverPayload) toServer() domain.Server {
	return domain.Server{
		ID:            p.ID,
		Type:          p.Type,
		Name:          p.Name,
		IPAddress:     p.IPAddress,
		InternalIP:    p.InternalIP,
		PHPVersion:    p.PHPVersion,
		MySQLVersion:  p.MySQLVersion,
		SitesCount:    p.SitesCount,
		Status:        p.Status,
		StatusID:      p.StatusID,
		CreatedAt:     p.CreatedAt,
		PHPCLIVersion: p.PHPCLIVersion,
		SSHPort:       p.SSHPort,
		DatabaseType:  p.DatabaseType,
		OPcache:       p.OPcache,
	}
}

// sitePayload mirrors the site fields the client knows about.
type sitePayload struct {
	ID            int64  `json:"id"`
	ServerID      int64  `json:"server_id"`
	Domain        string `json:"domain"`
	Status        string `json:"status"`
	ProjectType   string `json:"project_type"`
	ProjectRoot   string `json:"project_root"`
	WebDirectory  string `json:"web_directory"`
	PHPVersion    string `json:"php_version"`
	SystemUser    string `json:"system_user"`
	HasRepository bool   `json:"has_repository"`
	LastDeployAt  string `json:"last_deploy_at"`
	CreatedAt     string `json:"created_at"`
}

// knownSiteKeys are the wire keys consumed by sitePayload.
var knownSiteKeys = map[string]struct{}{
	"id": {}, "server_id": {}, "domain": {}, "status": {}, "project_type": {},
	"project_root": {}, "web_directory": {}, "php_version": {}, "system_user": {},
	"has_repository": {}, "last_deploy_at": {}, "created_at": {},
}

func (p sitePayload) toSite() domain.Site {
	return domain.Site{
		ID:            p.ID,
		ServerID:      p.ServerID,
		Domain:        p.Domain,
		Status:        p.Status,
		ProjectType:   p.ProjectType,
		ProjectRoot:   p.ProjectRoot,
		WebDirectory:  p.WebDirectory,
		PHPVersion:    p.PHPVersion,
		SystemUser:    p.SystemUser,
		HasRepository: p.HasRepository,
		LastDeployAt:  p.LastDeployAt,
		CreatedAt:     p.CreatedAt,
	}
}

func decodeServer(raw json.RawMessage) (domain.Server, error) {
	var p serverPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Server{}, fmt.Errorf("decode server: %w", err)
	}
	return p.toServer(), nil
}

// decodeSite maps the known fields and keeps the rest, camelCased, in Attributes.
func decodeSite(raw json.RawMessage) (domain.Site, error) {
	var p sitePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Site{}, fmt.Errorf("decode site: %w", err)
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return domain.Site{}, fmt.Errorf("decode site: %w", err)
	}

	site := p.toSite()
	for k, v := range all {
		if _, ok := knownSiteKeys[k]; ok {
			continue
		}
		if site.Attributes == nil {
			site.Attributes = make(map[string]any)
		}
		site.Attributes[camelCase(k)] = v
	}
	return site, nil
}

// camelCase converts snake_case, kebab-case, space separated and PascalCase
// keys to lowerCamelCase. "ip_address" becomes "ipAddress", "php-cli version"
// becomes "phpCliVersion" and "PHPVersion" becomes "phpVersion". Keys that
// are already camelCase are unchanged.
func camelCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, w := range splitWords(s) {
		runes := []rune(strings.ToLower(w))
		if i > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

// splitWords breaks s on separators, on lower-to-upper case transitions and
// before the last capital of an acronym that is followed by a lowercase letter.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur = append(cur, r)
		case unicode.IsLower(r) && len(cur) > 1 && unicode.IsUpper(prev) && unicode.IsUpper(cur[len(cur)-2]):
			// "PHPVersion": the last capital of a run starts the next word
			cur = cur[:len(cur)-1]
			flush()
			cur = append(cur, prev, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return words
}
