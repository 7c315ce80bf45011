package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadDefault(t *testing.T) {
	cfg := LoadDefault()

	if cfg.Server.Port != 4224 {
		t.Errorf("Expected port 4224, got %d", cfg.Server.Port)
	}
	if cfg.Server.Bind != "" {
		t.Errorf("Expected empty bind address, got '%s'", cfg.Server.Bind)
	}
	if cfg.Server.Mode != ModeThreaded {
		t.Errorf("Expected mode '%s', got '%s'", ModeThreaded, cfg.Server.Mode)
	}
	if cfg.Upstream.Since != "now/1d+9h" {
		t.Errorf("Expected since 'now/1d+9h', got '%s'", cfg.Upstream.Since)
	}
	if cfg.Upstream.TimeZone != "-06:00" {
		t.Errorf("Expected time zone '-06:00', got '%s'", cfg.Upstream.TimeZone)
	}
	if cfg.Retry.Enabled {
		t.Error("Expected retry to be disabled by default")
	}
	if cfg.Sources.MarkdownPath != "../README.md" {
		t.Errorf("Expected markdown path '../README.md', got '%s'", cfg.Sources.MarkdownPath)
	}
	if cfg.Address() != ":4224" {
		t.Errorf("Expected address ':4224', got '%s'", cfg.Address())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration should be valid, got: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	tempDir := t.TempDir()

	path := filepath.Join(tempDir, "nixie.yaml")
	content := `
server:
  bind: 127.0.0.1
  port: 8080
  mode: single
  get_only: true
upstream:
  time_zone: "+01:00"
sources:
  counter_path: /var/lib/counter
retry:
  enabled: true
  retryable_errors:
    - eof
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Address() != "127.0.0.1:8080" {
		t.Errorf("Expected address '127.0.0.1:8080', got '%s'", cfg.Address())
	}
	if cfg.Server.Mode != ModeSingle {
		t.Errorf("Expected mode '%s', got '%s'", ModeSingle, cfg.Server.Mode)
	}
	if !cfg.Server.GetOnly {
		t.Error("Expected get_only to be true")
	}
	if cfg.Upstream.TimeZone != "+01:00" {
		t.Errorf("Expected time zone '+01:00', got '%s'", cfg.Upstream.TimeZone)
	}
	// Unset values keep their defaults
	if cfg.Upstream.Since != "now/1d+9h" {
		t.Errorf("Expected default since, got '%s'", cfg.Upstream.Since)
	}
	if cfg.Server.IdleTimeout != 30 {
		t.Errorf("Expected default idle timeout 30, got %d", cfg.Server.IdleTimeout)
	}
	if cfg.Sources.CounterPath != "/var/lib/counter" {
		t.Errorf("Expected counter path '/var/lib/counter', got '%s'", cfg.Sources.CounterPath)
	}
	if !cfg.Retry.Enabled {
		t.Error("Expected retry to be enabled")
	}
	if !reflect.DeepEqual(cfg.Retry.RetryableErrors, []string{"eof"}) {
		t.Errorf("Expected retryable errors [eof], got %v", cfg.Retry.RetryableErrors)
	}
}

func TestLoadTOML(t *testing.T) {
	tempDir := t.TempDir()

	path := filepath.Join(tempDir, "nixie.toml")
	content := `
[server]
port = 9000
max_connections = 16

[sources]
directory = "/srv/inbox"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 16 {
		t.Errorf("Expected max connections 16, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Sources.Directory != "/srv/inbox" {
		t.Errorf("Expected directory '/srv/inbox', got '%s'", cfg.Sources.Directory)
	}
	if cfg.Server.Mode != ModeThreaded {
		t.Errorf("Expected default mode, got '%s'", cfg.Server.Mode)
	}
}

func TestLoadInvalid(t *testing.T) {
	tempDir := t.TempDir()

	if _, err := Load(filepath.Join(tempDir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	badSyntax := filepath.Join(tempDir, "bad.yaml")
	if err := os.WriteFile(badSyntax, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := Load(badSyntax); err == nil {
		t.Error("Expected error for malformed YAML")
	}

	badMode := filepath.Join(tempDir, "mode.yaml")
	if err := os.WriteFile(badMode, []byte("server:\n  mode: forking\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	_, err := Load(badMode)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadOverridesDefaultsWithZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixie.yaml")
	content := `
server:
  idle_timeout: 0
logging:
  compress: false
  max_backups: 0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Compress {
		t.Error("Expected compress to be disabled by the config file")
	}
	if cfg.Logging.MaxBackups != 0 {
		t.Errorf("Expected max backups 0, got %d", cfg.Logging.MaxBackups)
	}
	if cfg.Server.IdleTimeout != 0 {
		t.Errorf("Expected idle timeout 0, got %d", cfg.Server.IdleTimeout)
	}
	if cfg.Logging.MaxSize != 10 {
		t.Errorf("Expected default max size 10, got %d", cfg.Logging.MaxSize)
	}
}

func TestLoadTOMLDisablesCompress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixie.toml")
	if err := os.WriteFile(path, []byte("[logging]\ncompress = false\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Compress {
		t.Error("Expected compress to be disabled by the config file")
	}
	if !reflect.DeepEqual(cfg.Retry, LoadDefault().Retry) {
		t.Errorf("Expected default retry settings, got %+v", cfg.Retry)
	}
}

func TestMarshal(t *testing.T) {
	data, err := LoadDefault().Marshal()
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	for _, want := range []string{"port: 4224", "mode: threaded"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected marshalled config to contain %q, got:\n%s", want, data)
		}
	}
}
