// Package config loads and validates the kartta configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kartta-io/kartta/types"
)

// Config represents the main configuration
type Config struct {
	Version      string          `yaml:"version"`
	Accounts     []types.Account `yaml:"accounts"`
	Regions      []string        `yaml:"regions"`
	Services     []string        `yaml:"services"`
	CleanupStale bool            `yaml:"cleanup_stale,omitempty"`
	Limits       Limits          `yaml:"limits,omitempty"`
	Permissions  Permissions     `yaml:"permissions,omitempty"`
	Embedding    Embedding       `yaml:"embedding"`
	Store        Store           `yaml:"store,omitempty"`
	Telemetry    Telemetry       `yaml:"telemetry,omitempty"`
}

// Limits bounds the fan-out at each parallelism level.
// Zero values fall back to defaults at scan time.
type Limits struct {
	Regions         int `yaml:"regions,omitempty"`
	Services        int `yaml:"services,omitempty"`
	Resources       int `yaml:"resources,omitempty"`
	PermissionCalls int `yaml:"permission_calls,omitempty"`
}

// Permissions configures the permission resolver
type Permissions struct {
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

// Embedding configures the embedding model
type Embedding struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// Store configures the local persistent store
type Store struct {
	Path string `yaml:"path,omitempty"`
}

// Telemetry configures OTEL export
type Telemetry struct {
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
	Environment  string `yaml:"environment,omitempty"`
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	for i, account := range c.Accounts {
		if account.ID == "" {
			return fmt.Errorf("account %d: id is required", i)
		}
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("at least one service is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if c.Embedding.Endpoint == "" {
		return fmt.Errorf("embedding endpoint is required")
	}
	return nil
}

// StorePath returns the configured store path or the default
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return "./kartta.db"
}

// PermissionCacheTTL returns the configured cache TTL or the default
func (c *Config) PermissionCacheTTL() time.Duration {
	if c.Permissions.CacheTTL > 0 {
		return c.Permissions.CacheTTL
	}
	return 5 * time.Minute
}
