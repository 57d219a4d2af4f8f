package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbweber/homelab/ploi/internal/datastore"
	"github.com/jbweber/homelab/ploi/internal/domain"
	"github.com/jbweber/homelab/ploi/internal/ploi"
	_ "modernc.org/sqlite"
)

// Environment variables read by LoadEnv.
const (
	EnvAPIURL    = "PLOI_API_URL"
	EnvAPIToken  = "PLOI_API_TOKEN"
	EnvSSHUser   = "PLOI_SSH_USER"
	EnvSSHKey    = "PLOI_SSH_KEY"
	EnvCachePath = "PLOI_CACHE_PATH"
	EnvListen    = "PLOI_LISTEN"
)

// ErrMissingToken is returned by Validate when no API token is configured.
var ErrMissingToken = errors.New("API token is required")

// Config holds all configuration for the ploi client
type Config struct {
	APIURL     string
	APIToken   string
	PanelURL   string
	SSHUser    string
	SSHKeyPath string
	KnownHosts string
	CachePath  string
	ListenAddr string
	Timeout    time.Duration
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		APIURL:     ploi.DefaultBaseURL,
		PanelURL:   domain.DefaultPanelURL,
		SSHUser:    "ploi",
		SSHKeyPath: "~/.ssh/id_ed25519",
		KnownHosts: "~/.ssh/known_hosts",
		CachePath:  "~/.ploi/cache.db",
		ListenAddr: "127.0.0.1:8080",
		Timeout:    30 * time.Second,
	}
}

// LoadEnv overrides fields with any non-empty environment variables
func (c *Config) LoadEnv() {
	c.loadEnv(os.Getenv)
}

func (c *Config) loadEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.APIURL, EnvAPIURL)
	set(&c.APIToken, EnvAPIToken)
	set(&c.SSHUser, EnvSSHUser)
	set(&c.SSHKeyPath, EnvSSHKey)
	set(&c.CachePath, EnvCachePath)
	set(&c.ListenAddr, EnvListen)
}

// Validate checks the settings needed to talk to the API
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("%w: set %s or pass --token", ErrMissingToken, EnvAPIToken)
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("invalid API URL %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.SSHUser == "" {
		c.SSHUser = "ploi"
	}
	return nil
}

// InitializeDatastore creates the cache database and runs migrations
func (c *Config) InitializeDatastore(ctx context.Context) (*datastore.Datastore, error) {
	dbPath := c.expandPath(c.CachePath)

	// Ensure database directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	OptimizeDatabaseConnection(db)

	if err := ApplyPragmaOptimizations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
	}

	ds, err := datastore.NewWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return ds, nil
}

// SSHKey returns the expanded SSH private key path
func (c *Config) SSHKey() string {
	return c.expandPath(c.SSHKeyPath)
}

// KnownHostsPath returns the expanded known_hosts path
func (c *Config) KnownHostsPath() string {
	return c.expandPath(c.KnownHosts)
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}
