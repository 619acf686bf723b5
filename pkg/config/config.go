// Package config loads gitweave settings from a TOML or YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/remote"
)

// Environment variables that override file settings.
const (
	EnvGateway         = "GITWEAVE_GATEWAY"
	EnvProtocolVersion = "GITWEAVE_PROTOCOL_VERSION"
	EnvConcurrency     = "GITWEAVE_CONCURRENCY"
	EnvLogLevel        = "GITWEAVE_LOG_LEVEL"
)

// Config holds all settings.
type Config struct {
	Gateway  Gateway  `toml:"gateway" yaml:"gateway"`
	Protocol Protocol `toml:"protocol" yaml:"protocol"`
	Fetch    Fetch    `toml:"fetch" yaml:"fetch"`
	Log      Log      `toml:"log" yaml:"log"`
}

// Gateway configures the ledger gateway client.
type Gateway struct {
	URL         string        `toml:"url" yaml:"url"`
	GraphQLPath string        `toml:"graphql_path" yaml:"graphql_path"`
	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
	MaxAttempts int           `toml:"max_attempts" yaml:"max_attempts"`
	RetryDelay  time.Duration `toml:"retry_delay" yaml:"retry_delay"`
	PageSize    int           `toml:"page_size" yaml:"page_size"`
}

type Protocol struct {
	Version string `toml:"version" yaml:"version"`
}

type Fetch struct {
	// Concurrency of 0 means unbounded.
	Concurrency int  `toml:"concurrency" yaml:"concurrency"`
	StrictItems bool `toml:"strict_items" yaml:"strict_items"`
}

type Log struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Gateway: Gateway{
			URL:         ledger.DefaultGatewayURL,
			GraphQLPath: "/graphql",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
			PageSize:    100,
		},
		Protocol: Protocol{Version: remote.DefaultProtocolVersion},
		Fetch:    Fetch{Concurrency: 8},
		Log:      Log{Level: "info"},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "gitweave", "config.toml"), nil
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file yields the defaults. The format follows the extension:
// .yaml and .yml are YAML, anything else is TOML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("unmarshal yaml: %w", err)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("unmarshal toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvGateway); ok && strings.TrimSpace(v) != "" {
		c.Gateway.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvProtocolVersion); ok && strings.TrimSpace(v) != "" {
		c.Protocol.Version = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvConcurrency); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Fetch.Concurrency = n
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = strings.TrimSpace(v)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Gateway.URL) == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if u, err := url.Parse(c.Gateway.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("gateway.url %q must be an http or https URL", c.Gateway.URL)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if c.Gateway.MaxAttempts <= 0 {
		return fmt.Errorf("gateway.max_attempts must be positive, got %d", c.Gateway.MaxAttempts)
	}
	if c.Gateway.RetryDelay < 0 {
		return fmt.Errorf("gateway.retry_delay must not be negative")
	}
	if c.Gateway.PageSize <= 0 {
		return fmt.Errorf("gateway.page_size must be positive, got %d", c.Gateway.PageSize)
	}
	if strings.TrimSpace(c.Protocol.Version) == "" {
		return fmt.Errorf("protocol.version is required")
	}
	if c.Fetch.Concurrency < 0 {
		return fmt.Errorf("fetch.concurrency must not be negative, got %d", c.Fetch.Concurrency)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// LedgerOptions maps gateway settings onto client options.
func (c Config) LedgerOptions(logger *zerolog.Logger) ledger.ClientOptions {
	return ledger.ClientOptions{
		Timeout:     c.Gateway.Timeout,
		MaxAttempts: c.Gateway.MaxAttempts,
		RetryDelay:  c.Gateway.RetryDelay,
		PageSize:    c.Gateway.PageSize,
		GraphQLPath: c.Gateway.GraphQLPath,
		Logger:      logger,
	}
}

// RemoteOptions maps protocol and fetch settings onto remote client options.
func (c Config) RemoteOptions(logger *zerolog.Logger) remote.Options {
	return remote.Options{
		ProtocolVersion: c.Protocol.Version,
		Concurrency:     c.Fetch.Concurrency,
		StrictItems:     c.Fetch.StrictItems,
		Logger:          logger,
	}
}
