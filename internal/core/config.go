package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire pdgo configuration.
type Config struct {
	API           APIConfig      `yaml:"api"`
	Cache         CacheConfig    `yaml:"cache"`
	Notifications NotifyConfig   `yaml:"notifications"`
	Logging       LoggingConfig  `yaml:"logging"`
	Defaults      DefaultsConfig `yaml:"defaults"`
}

// APIConfig holds remote API settings.
type APIConfig struct {
	Key            string `yaml:"key"`
	Email          string `yaml:"email"`
	BaseURL        string `yaml:"base_url"`
	Timeout        string `yaml:"timeout"`
	MaxRetries     int    `yaml:"max_retries"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
	MaxPages       int    `yaml:"max_pages"`
	PageLimit      int    `yaml:"page_limit"`
}

// CacheConfig holds local cache store settings.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"` // empty: <user cache dir>/pdgo/<profile>
	ListTTL     string `yaml:"list_ttl"`
	ResourceTTL string `yaml:"resource_ttl"`
}

// NotifyConfig holds watch-mode notification settings.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultsConfig holds user-level defaults applied when flags are absent.
type DefaultsConfig struct {
	UserID string   `yaml:"user_id"`
	Teams  []string `yaml:"teams"`
}

// DefaultConfig returns a Config with sane defaults — zero-config works out
// of the box once an API key is supplied via PDGO_API_KEY.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://api.pagerduty.com",
			Timeout:        "10s",
			MaxRetries:     4,
			InitialBackoff: "500ms",
			MaxBackoff:     "8s",
			MaxPages:       50,
			PageLimit:      100,
		},
		Cache: CacheConfig{
			Enabled:     true,
			ListTTL:     "120s",
			ResourceTTL: "300s",
		},
		Notifications: NotifyConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "pdgo",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// DefaultConfigPath returns the default configuration file location,
// honoring PDGO_CONFIG.
func DefaultConfigPath() string {
	if e := os.Getenv("PDGO_CONFIG"); e != "" {
		return e
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pdgo.yaml"
	}
	return filepath.Join(home, ".config", "pdgo", "config.yaml")
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
// A missing file is not an error; the API key falls back to PDGO_API_KEY.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("PDGO_API_KEY")
	}
	if cfg.API.Email == "" {
		cfg.API.Email = os.Getenv("PDGO_EMAIL")
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file, creating parent
// directories as needed. Mode 0600: the file carries the API key.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0600)
}

// CacheDir returns the on-disk cache directory for the given profile.
func (c *Config) CacheDir(profile string) string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	if profile == "" {
		profile = "default"
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = ".cache"
	}
	return filepath.Join(base, "pdgo", profile)
}

// Duration parses a duration string from the config, falling back to def on
// empty or unparsable values.
func Duration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return def
}

// LogLevel returns the normalized log level string.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}
