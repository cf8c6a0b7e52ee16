package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestYAML(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test yaml: %v", err)
	}
	return path
}

const minimalYAML = `
accounts:
  - platform: reddit
`

// --- Load tests ---

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_REDDIT_SECRET", "s3cr3t")
	t.Setenv("TEST_X_TOKEN", "bearer-1")

	writeTestYAML(t, dir, DefaultConfigFile, `
storage:
  path: custom.db
  token_cache: custom-tokens
  retain_days: 365
sync:
  max_pages: 10
  page_size: 25
  timeout: 10s
  max_retries: 5
  retry_delay: 250ms
  concurrency: 2
log:
  level: debug
  format: json
privacy:
  redact:
    enabled: true
    patterns:
      - "(?i)token"
accounts:
  - id: main
    platform: reddit
    credentials:
      clientId: app
      username: spez
    credentials_env:
      clientSecret: TEST_REDDIT_SECRET
  - id: x
    platform: twitter
    base_url: http://localhost:8080
    credentials_env:
      accessToken: TEST_X_TOKEN
  - id: old
    platform: pinboard
    disabled: true
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Storage
	if cfg.Storage.Path != "custom.db" {
		t.Errorf("storage path = %q, want custom.db", cfg.Storage.Path)
	}
	if cfg.Storage.TokenCache != "custom-tokens" {
		t.Errorf("token cache = %q, want custom-tokens", cfg.Storage.TokenCache)
	}
	if cfg.Storage.RetainDays != 365 {
		t.Errorf("retain_days = %d, want 365", cfg.Storage.RetainDays)
	}

	// Sync
	if cfg.Sync.MaxPages != 10 || cfg.Sync.PageSize != 25 || cfg.Sync.MaxRetries != 5 || cfg.Sync.Concurrency != 2 {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Sync.Timeout.Duration != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Sync.Timeout.Duration)
	}
	if cfg.Sync.RetryDelay.Duration != 250*time.Millisecond {
		t.Errorf("retry_delay = %v, want 250ms", cfg.Sync.RetryDelay.Duration)
	}

	// Log
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}

	// Privacy
	if !cfg.Privacy.Redact.Enabled || len(cfg.Privacy.Redact.Patterns) != 1 {
		t.Errorf("redact = %+v", cfg.Privacy.Redact)
	}

	// Accounts
	if len(cfg.Accounts) != 3 {
		t.Fatalf("accounts = %d, want 3", len(cfg.Accounts))
	}
	main, ok := cfg.Account("main")
	if !ok {
		t.Fatal("account main not found")
	}
	if main.Credentials["clientSecret"] != "s3cr3t" {
		t.Errorf("clientSecret = %q, want s3cr3t", main.Credentials["clientSecret"])
	}
	if main.Credentials["username"] != "spez" {
		t.Errorf("username = %q, want spez", main.Credentials["username"])
	}
	x, _ := cfg.Account("x")
	if x.Credentials["accessToken"] != "bearer-1" {
		t.Errorf("accessToken = %q, want bearer-1", x.Credentials["accessToken"])
	}
	if x.BaseURL != "http://localhost:8080" {
		t.Errorf("base_url = %q", x.BaseURL)
	}

	enabled := cfg.Enabled()
	if len(enabled) != 2 || enabled[0].ID != "main" || enabled[1].ID != "x" {
		t.Errorf("enabled = %+v", enabled)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, minimalYAML)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Storage.Path != DefaultStoragePath {
		t.Errorf("storage path = %q, want %q", cfg.Storage.Path, DefaultStoragePath)
	}
	if cfg.Storage.TokenCache != DefaultTokenCache {
		t.Errorf("token cache = %q, want %q", cfg.Storage.TokenCache, DefaultTokenCache)
	}
	if cfg.Storage.RetainDays != 0 {
		t.Errorf("retain_days = %d, want 0", cfg.Storage.RetainDays)
	}
	if cfg.Sync.MaxPages != DefaultMaxPages {
		t.Errorf("max_pages = %d, want %d", cfg.Sync.MaxPages, DefaultMaxPages)
	}
	if cfg.Sync.PageSize != DefaultPageSize {
		t.Errorf("page_size = %d, want %d", cfg.Sync.PageSize, DefaultPageSize)
	}
	if cfg.Sync.Timeout.Duration != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Sync.Timeout.Duration, DefaultTimeout)
	}
	if cfg.Sync.MaxRetries != DefaultMaxRetries {
		t.Errorf("max_retries = %d, want %d", cfg.Sync.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Sync.RetryDelay.Duration != DefaultRetryDelay {
		t.Errorf("retry_delay = %v, want %v", cfg.Sync.RetryDelay.Duration, DefaultRetryDelay)
	}
	if cfg.Sync.Concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", cfg.Sync.Concurrency, DefaultConcurrency)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("log = %+v", cfg.Log)
	}

	// Account id defaults to the platform name.
	if cfg.Accounts[0].ID != "reddit" {
		t.Errorf("account id = %q, want reddit", cfg.Accounts[0].ID)
	}
	if cfg.Accounts[0].Credentials == nil {
		t.Error("credentials should default to an empty map")
	}
}

func TestLoad_EnvOverridesInline(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_PW", "from-env")
	writeTestYAML(t, dir, DefaultConfigFile, `
accounts:
  - platform: reddit
    credentials:
      password: inline
    credentials_env:
      password: TEST_PW
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Accounts[0].Credentials["password"]; got != "from-env" {
		t.Errorf("password = %q, want from-env", got)
	}
}

func TestLoad_EnvVarMissing(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, `
accounts:
  - platform: reddit
    credentials:
      password: inline
    credentials_env:
      password: SAVEDSYNC_TEST_UNSET_VAR
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Accounts[0].Credentials["password"]; got != "inline" {
		t.Errorf("password = %q, want inline value kept", got)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no accounts", "storage:\n  path: x.db\n", "at least one account"},
		{"missing platform", "accounts:\n  - id: a\n", "platform is required"},
		{"duplicate id", "accounts:\n  - platform: reddit\n  - platform: reddit\n", "duplicate id"},
		{"negative retain", minimalYAML + "storage:\n  retain_days: -1\n", "retain_days"},
		{"bad concurrency", minimalYAML + "sync:\n  concurrency: -2\n", "must be positive"},
		{"bad level", minimalYAML + "log:\n  level: loud\n", "log.level"},
		{"bad format", minimalYAML + "log:\n  format: xml\n", "log.format"},
		{"bad pattern", minimalYAML + "privacy:\n  redact:\n    patterns: [\"[oops\"]\n", "privacy.redact.patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTestYAML(t, dir, DefaultConfigFile, tt.yaml)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoad_DurationParsing(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, minimalYAML+"sync:\n  timeout: forever\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "forever") {
		t.Errorf("error = %v, want mention of the bad value", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, "accounts: [unclosed")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	_, err := Load("  ")
	if err == nil {
		t.Fatal("expected error for empty dir")
	}
}
