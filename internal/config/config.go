package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "config.yaml"
	DefaultStoragePath = ".savedsync/savedsync.db"
	DefaultTokenCache  = ".savedsync/tokens"
	DefaultMaxPages    = 100
	DefaultPageSize    = 100
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultConcurrency = 4
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Storage  StorageConfig   `yaml:"storage"`
	Sync     SyncConfig      `yaml:"sync"`
	Log      LogConfig       `yaml:"log"`
	Privacy  PrivacyConfig   `yaml:"privacy"`
	Accounts []AccountConfig `yaml:"accounts"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	TokenCache string `yaml:"token_cache"`
	// RetainDays prunes posts saved longer ago than this. Zero keeps all.
	RetainDays int `yaml:"retain_days"`
}

type SyncConfig struct {
	MaxPages    int      `yaml:"max_pages"`
	PageSize    int      `yaml:"page_size"`
	Timeout     Duration `yaml:"timeout"`
	MaxRetries  int      `yaml:"max_retries"`
	RetryDelay  Duration `yaml:"retry_delay"`
	Concurrency int      `yaml:"concurrency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

// AccountConfig is one platform account to sync.
type AccountConfig struct {
	ID       string `yaml:"id"`
	Platform string `yaml:"platform"`
	Disabled bool   `yaml:"disabled"`
	// BaseURL overrides the platform API endpoint.
	BaseURL string `yaml:"base_url"`

	Credentials map[string]string `yaml:"credentials"`
	// CredentialsEnv maps a credential key to the environment variable
	// holding its value.
	CredentialsEnv map[string]string `yaml:"credentials_env"`
}

// Account returns the account with the given id.
func (c *Config) Account(id string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountConfig{}, false
}

// Enabled returns the accounts not marked disabled, in file order.
func (c *Config) Enabled() []AccountConfig {
	var out []AccountConfig
	for _, a := range c.Accounts {
		if !a.Disabled {
			out = append(out, a)
		}
	}
	return out
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.TokenCache == "" {
		cfg.Storage.TokenCache = DefaultTokenCache
	}
	if cfg.Sync.MaxPages == 0 {
		cfg.Sync.MaxPages = DefaultMaxPages
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = DefaultPageSize
	}
	if cfg.Sync.Timeout.Duration == 0 {
		cfg.Sync.Timeout.Duration = DefaultTimeout
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = DefaultMaxRetries
	}
	if cfg.Sync.RetryDelay.Duration == 0 {
		cfg.Sync.RetryDelay.Duration = DefaultRetryDelay
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = DefaultConcurrency
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	for i := range cfg.Accounts {
		a := &cfg.Accounts[i]
		a.Platform = strings.TrimSpace(a.Platform)
		if a.ID == "" {
			a.ID = a.Platform
		}
		if a.Credentials == nil {
			a.Credentials = map[string]string{}
		}
	}
}

// resolveEnv fills credentials from the environment. A set variable
// overrides an inline value for the same key.
func resolveEnv(cfg *Config) {
	for i := range cfg.Accounts {
		a := &cfg.Accounts[i]
		for key, env := range a.CredentialsEnv {
			if v := os.Getenv(env); v != "" {
				a.Credentials[key] = v
			}
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Accounts) == 0 {
		return errors.New("accounts: at least one account must be configured")
	}

	seen := make(map[string]bool, len(cfg.Accounts))
	for i, a := range cfg.Accounts {
		if a.Platform == "" {
			return fmt.Errorf("accounts[%d]: platform is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
	}

	if cfg.Storage.RetainDays < 0 {
		return fmt.Errorf("storage.retain_days: must be >= 0, got %d", cfg.Storage.RetainDays)
	}
	if cfg.Sync.MaxPages < 1 || cfg.Sync.PageSize < 1 || cfg.Sync.MaxRetries < 1 || cfg.Sync.Concurrency < 1 {
		return errors.New("sync: max_pages, page_size, max_retries and concurrency must be positive")
	}
	if cfg.Sync.Timeout.Duration < 0 || cfg.Sync.RetryDelay.Duration < 0 {
		return errors.New("sync: durations must not be negative")
	}

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", cfg.Log.Format)
	}

	for _, p := range cfg.Privacy.Redact.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("privacy.redact.patterns: %w", err)
		}
	}

	return nil
}
