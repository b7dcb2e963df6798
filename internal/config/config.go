// ABOUTME: Configuration loading and parsing for the edushare console clients
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default values applied when a field is left empty.
const (
	DefaultBaseURL    = "http://localhost:8000/api/v1"
	DefaultPageSize   = 20
	DefaultAdminRole  = "admin"
	DefaultAdminKey   = "admin_token"
	DefaultPortalKey  = "token"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	MaxPageSize       = 100
	stateDBFileName   = "state.db"
	configDirName     = "edushare"
	configFileName    = "config.yaml"
	envConfigPath     = "EDUSHARE_CONFIG"
	envAPIURLOverride = "EDUSHARE_API_URL"
)

// Config represents the complete console configuration
type Config struct {
	API        APIConfig        `yaml:"api" toml:"api"`
	Session    SessionConfig    `yaml:"session" toml:"session"`
	Admin      AdminConfig      `yaml:"admin" toml:"admin"`
	Pagination PaginationConfig `yaml:"pagination" toml:"pagination"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// APIConfig holds REST endpoint configuration
type APIConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling; empty means no client timeout
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// SessionConfig holds token persistence configuration
type SessionConfig struct {
	StatePath string `yaml:"state_path" toml:"state_path"`
	AdminKey  string `yaml:"admin_key" toml:"admin_key"`
	PortalKey string `yaml:"portal_key" toml:"portal_key"`
}

// AdminConfig holds the server-claim used to recognise admin identities
type AdminConfig struct {
	Role string `yaml:"role" toml:"role"`
}

// PaginationConfig holds list controller defaults
type PaginationConfig struct {
	Size int `yaml:"size" toml:"size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadDefault resolves the config path (EDUSHARE_CONFIG, then
// ~/.config/edushare/config.yaml) and loads it. A missing file yields
// Default(). EDUSHARE_API_URL overrides api.base_url in either case.
func LoadDefault() (*Config, error) {
	path := os.Getenv(envConfigPath)
	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, configFileName)
	}

	cfg, err := Load(path)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}

	if override := os.Getenv(envAPIURLOverride); override != "" {
		cfg.API.BaseURL = override
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
	}
	return cfg, nil
}

// Dir returns the edushare config directory, honouring XDG_CONFIG_HOME.
func Dir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, configDirName), nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	if c.Session.StatePath == "" {
		if dir, err := Dir(); err == nil {
			c.Session.StatePath = filepath.Join(dir, stateDBFileName)
		}
	}
	if c.Session.AdminKey == "" {
		c.Session.AdminKey = DefaultAdminKey
	}
	if c.Session.PortalKey == "" {
		c.Session.PortalKey = DefaultPortalKey
	}
	if c.Admin.Role == "" {
		c.Admin.Role = DefaultAdminRole
	}
	if c.Pagination.Size == 0 {
		c.Pagination.Size = DefaultPageSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}

	if c.Session.StatePath == "" {
		return fmt.Errorf("session.state_path is required")
	}

	if c.Session.AdminKey == c.Session.PortalKey {
		return fmt.Errorf("session.admin_key and session.portal_key must differ")
	}

	if c.Pagination.Size < 1 || c.Pagination.Size > MaxPageSize {
		return fmt.Errorf("pagination.size must be between 1 and %d", MaxPageSize)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.API.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing api.timeout %q: %w", cfg.API.TimeoutRaw, err)
		}
		cfg.API.Timeout = d
	}
	return nil
}
