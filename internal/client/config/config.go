package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/openmined/syftbox-client/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".syftbox", "config.json")
	DefaultDataDir     = filepath.Join(home, "SyftBox")
	DefaultServerURL   = "https://syftbox.net"
	DefaultClientURL   = "http://localhost:7938"
	DefaultLogFilePath = filepath.Join(home, ".syftbox", "logs", "syftbox.log")
)

// Config is the on-disk client configuration. AccessToken is runtime-only
// and never persisted; AppsEnabled always resets to true on load.
type Config struct {
	DataDir      string `json:"data_dir"`
	Email        string `json:"email"`
	ServerURL    string `json:"server_url"`
	ClientURL    string `json:"client_url"`
	ClientToken  string `json:"client_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AccessToken  string `json:"-"`
	AppsEnabled  bool   `json:"-"`
	Path         string `json:"-"`
}

// Validate normalizes the config in place and reports the first problem found.
func (c *Config) Validate() error {
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("invalid data dir %q: %w", c.DataDir, err)
	}
	c.DataDir = dataDir

	if c.Path != "" {
		path, err := utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("invalid config path %q: %w", c.Path, err)
		}
		c.Path = path
	}

	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if err := utils.ValidateEmail(c.Email); err != nil {
		return err
	}

	if err := validateHTTPURL(c.ServerURL); err != nil {
		return fmt.Errorf("invalid server url %q: %w", c.ServerURL, err)
	}

	if c.ClientURL == "" {
		c.ClientURL = DefaultClientURL
	}
	if err := validateHTTPURL(c.ClientURL); err != nil {
		return fmt.Errorf("invalid client url %q: %w", c.ClientURL, err)
	}

	return nil
}

// Save writes the config to its Path.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config path not set")
	}

	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.Path, data, 0o644)
}

// LoadFromFile reads a config from disk. Runtime-only fields get their
// defaults; the caller is expected to Validate before use.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg.Path = path
	cfg.AppsEnabled = true

	return &cfg, nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
