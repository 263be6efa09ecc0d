// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"reelscrape/internal/httputil"
)

// Token store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `toml:"log_level"`
	LogJSON  bool   `toml:"log_json"`

	Proxy            string        `toml:"proxy"`
	FingerprintHosts []string      `toml:"fingerprint_hosts"`
	Timeout          time.Duration `toml:"timeout"`

	SolverURL  string        `toml:"solver_url"`
	TokenStore string        `toml:"token_store"`
	TokenPath  string        `toml:"token_path"`
	TokenTTL   time.Duration `toml:"token_ttl"`

	M3U8Proxy        string `toml:"m3u8_proxy"`
	HeadersSupported bool   `toml:"headers_supported"`
	EvaluateScripts  bool   `toml:"evaluate_scripts"`
	TMDBAPIKey       string `toml:"tmdb_api_key"`
	SubsLanguage     string `toml:"subs_language"`

	Disabled []string `toml:"disabled"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		Timeout:          30 * time.Second,
		FingerprintHosts: []string{"movies4f.com", "fsonline.app"},
		TokenStore:       StoreFile,
		TokenTTL:         9 * time.Minute,
		HeadersSupported: true,
		SubsLanguage:     "english",
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reelscrape"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "reelscrape"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path and merges with defaults. A missing file
// yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validLevels := []string{"trace", "debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("unsupported log level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	validStores := []string{StoreMemory, StoreFile, StoreSQLite}
	if !slices.Contains(validStores, c.TokenStore) {
		return fmt.Errorf("unsupported token store %q (valid: memory, file, sqlite)", c.TokenStore)
	}

	if c.Timeout < time.Second || c.Timeout > 5*time.Minute {
		return fmt.Errorf("timeout %s out of range (1s to 5m)", c.Timeout)
	}
	if c.TokenTTL <= 0 || c.TokenTTL > 24*time.Hour {
		return fmt.Errorf("token ttl %s out of range (up to 24h)", c.TokenTTL)
	}

	if c.Proxy != "" {
		if err := validateProxy(c.Proxy); err != nil {
			return err
		}
	}
	if c.SolverURL != "" {
		if err := httputil.ValidateHTTPURL(c.SolverURL); err != nil {
			return fmt.Errorf("solver_url: %w", err)
		}
	}
	if c.M3U8Proxy != "" {
		if err := httputil.ValidateHTTPURL(c.M3U8Proxy); err != nil {
			return fmt.Errorf("m3u8_proxy: %w", err)
		}
	}

	return nil
}

func validateProxy(raw string) error {
	for _, scheme := range []string{"http://", "https://", "socks5://", "socks5h://"} {
		if strings.HasPrefix(raw, scheme) {
			return nil
		}
	}
	return fmt.Errorf("unsupported proxy %q (valid schemes: http, https, socks5, socks5h)", raw)
}

// ExpandTokenPath resolves ~ in the token path. An empty path resolves to
// the default location for the configured store.
func (c *Config) ExpandTokenPath() (string, error) {
	path := c.TokenPath
	if path == "" {
		name := "tokens.json"
		if c.TokenStore == StoreSQLite {
			name = "tokens.db"
		}
		return DataPath(name)
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}

// DataPath returns the path of a file in the XDG data directory.
func DataPath(name string) (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "reelscrape", name), nil
}
