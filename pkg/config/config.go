package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate when a setting is out of range
var ErrInvalidConfig = errors.New("invalid configuration")

// Concurrency modes accepted in server.mode
const (
	ModeSingle   = "single"
	ModeThreaded = "threaded"
)

// Config represents the daemon configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Upstream UpstreamConfig `yaml:"upstream" toml:"upstream"`
	Sources  SourcesConfig  `yaml:"sources" toml:"sources"`
	Retry    RetryConfig    `yaml:"retry" toml:"retry"`
	Logging  LogConfig      `yaml:"logging" toml:"logging"`
}

// ServerConfig contains the listening socket and dispatch settings
type ServerConfig struct {
	Bind           string `yaml:"bind" toml:"bind"` // empty means all interfaces
	Port           int    `yaml:"port" toml:"port"`
	Mode           string `yaml:"mode" toml:"mode"`
	MaxConnections int    `yaml:"max_connections" toml:"max_connections"` // 0 = unbounded
	IdleTimeout    int    `yaml:"idle_timeout" toml:"idle_timeout"`       // in seconds
	FetchTimeout   int    `yaml:"fetch_timeout" toml:"fetch_timeout"`     // in seconds, 0 = none
	GetOnly        bool   `yaml:"get_only" toml:"get_only"`
}

// UpstreamConfig describes the search API polled by the aic source
type UpstreamConfig struct {
	URL      string `yaml:"url" toml:"url"`
	Since    string `yaml:"since" toml:"since"`
	TimeZone string `yaml:"time_zone" toml:"time_zone"`
	Timeout  int    `yaml:"timeout" toml:"timeout"` // in seconds
}

// SourcesConfig holds the paths read by the file-based sources
type SourcesConfig struct {
	CounterPath  string `yaml:"counter_path" toml:"counter_path"`
	Directory    string `yaml:"directory" toml:"directory"`
	MarkdownPath string `yaml:"markdown_path" toml:"markdown_path"`
}

// RetryConfig contains settings for retrying upstream polls
type RetryConfig struct {
	Enabled         bool     `yaml:"enabled" toml:"enabled"`
	MaxRetries      int      `yaml:"max_retries" toml:"max_retries"`
	InitialDelay    int      `yaml:"initial_delay" toml:"initial_delay"` // in milliseconds
	MaxDelay        int      `yaml:"max_delay" toml:"max_delay"`         // in milliseconds
	BackoffFactor   float64  `yaml:"backoff_factor" toml:"backoff_factor"`
	JitterFactor    float64  `yaml:"jitter_factor" toml:"jitter_factor"`
	RetryableErrors []string `yaml:"retryable_errors" toml:"retryable_errors"`
}

// LogConfig contains settings for logging
type LogConfig struct {
	LogToFile   bool   `yaml:"log_to_file" toml:"log_to_file"`
	LogFilePath string `yaml:"log_file_path" toml:"log_file_path"`
	MaxSize     int    `yaml:"max_size" toml:"max_size"`       // megabytes
	MaxBackups  int    `yaml:"max_backups" toml:"max_backups"` // old files kept
	MaxAge      int    `yaml:"max_age" toml:"max_age"`         // days
	Compress    bool   `yaml:"compress" toml:"compress"`
}

// LoadDefault returns a configuration with default values
func LoadDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Bind: "",
			// https://www.speedguide.net/port.php?port=4224
			Port:           4224,
			Mode:           ModeThreaded,
			MaxConnections: 0,
			IdleTimeout:    30,
			FetchTimeout:   0,
			GetOnly:        false,
		},
		Upstream: UpstreamConfig{
			URL: "https://nocache.aggregator-data.artic.edu/api/v1/artworks/search",
			// All artworks updated since 9:00 AM today, local time in Chicago, IL
			Since:    "now/1d+9h",
			TimeZone: "-06:00",
			Timeout:  10,
		},
		Sources: SourcesConfig{
			MarkdownPath: "../README.md",
		},
		Retry: RetryConfig{
			Enabled:       false,
			MaxRetries:    2,
			InitialDelay:  250,
			MaxDelay:      2000,
			BackoffFactor: 2.0,
			JitterFactor:  0.1,
			RetryableErrors: []string{
				"timeout",
				"connection reset",
				"connection refused",
				"status 5",
			},
		},
		Logging: LogConfig{
			LogToFile:   false,
			LogFilePath: "nixie.log",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      28,
			Compress:    true,
		},
	}
}

// Default returns a configuration with default values
func Default() *Config {
	return LoadDefault()
}

// Load reads configuration from a YAML or TOML file over the default values.
// Settings absent from the file keep their defaults; settings present replace
// them, including false and zero values.
func Load(configPath string) (*Config, error) {
	cfg := LoadDefault()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := decode(configPath, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.Mode != ModeSingle && c.Server.Mode != ModeThreaded {
		return fmt.Errorf("%w: unknown mode %q (want %q or %q)", ErrInvalidConfig, c.Server.Mode, ModeSingle, ModeThreaded)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("%w: max_connections must not be negative", ErrInvalidConfig)
	}
	if c.Upstream.URL == "" {
		return fmt.Errorf("%w: upstream url is empty", ErrInvalidConfig)
	}
	return nil
}

// Address returns the host:port the daemon listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func decode(path string, data []byte, out *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), out)
		return err
	}
	return yaml.Unmarshal(data, out)
}
