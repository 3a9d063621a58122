package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the variable that points at an optional config file.
const FileEnv = "SANDKASSE_CONFIG"

// Config holds all runtime configuration.
type Config struct {
	Sandbox SandboxConfig `yaml:"sandbox" toml:"sandbox"`
	Logging LogConfig     `yaml:"logging" toml:"logging"`
}

// SandboxConfig holds the limits and wire settings of a runtime.
type SandboxConfig struct {
	Timeout          Duration `envconfig:"SANDKASSE_TIMEOUT" yaml:"timeout" toml:"timeout"`
	MaxCallStackSize int      `envconfig:"SANDKASSE_MAX_CALL_STACK" yaml:"max_call_stack" toml:"max_call_stack"`
	MaxHostCalls     int      `envconfig:"SANDKASSE_MAX_HOST_CALLS" yaml:"max_host_calls" toml:"max_host_calls"`
	Codec            string   `envconfig:"SANDKASSE_CODEC" yaml:"codec" toml:"codec"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// Duration is a time.Duration read from text such as "250ms" or "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration from defaults, the file named by SANDKASSE_CONFIG
// (if set) and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	return finish(cfg)
}

// LoadFile loads configuration from defaults, the given YAML or TOML file and
// environment variables, in that order.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Timeout:          Duration(5 * time.Second),
			MaxCallStackSize: 1024,
			MaxHostCalls:     0,
			Codec:            "msgpack",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Sandbox.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Sandbox.Timeout.Std())
	}
	if c.Sandbox.MaxCallStackSize < 0 {
		return fmt.Errorf("max call stack must not be negative, got %d", c.Sandbox.MaxCallStackSize)
	}
	if c.Sandbox.MaxHostCalls < 0 {
		return fmt.Errorf("max host calls must not be negative, got %d", c.Sandbox.MaxHostCalls)
	}
	switch c.Sandbox.Codec {
	case "", "msgpack", "json":
	default:
		return fmt.Errorf("unknown codec %q", c.Sandbox.Codec)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
