// Package config loads debugstate settings.
//
// Settings come from three layers, highest priority last:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← DEBUGSTATE_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/debugstate/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller after Load.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/debugstate/internal/integration/debug/adapters"
)

// EnvPrefix prefixes every environment variable, e.g. DEBUGSTATE_LOG_LEVEL.
const EnvPrefix = "DEBUGSTATE_"

// Config is the complete configuration.
type Config struct {
	Log     LogConfig     `toml:"log" envPrefix:"LOG_"`
	Debug   DebugConfig   `toml:"debug" envPrefix:"DEBUG_"`
	Adapter AdapterConfig `toml:"adapter" envPrefix:"ADAPTER_"`
	Store   StoreConfig   `toml:"store" envPrefix:"STORE_"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" env:"LEVEL"`
	// Format is text or json.
	Format string `toml:"format" env:"FORMAT"`
	// File receives logs instead of stderr when set.
	File string `toml:"file" env:"FILE"`
}

// DebugConfig tunes the coordinator and its session.
type DebugConfig struct {
	MaxOutputEntries int      `toml:"max_output_entries" env:"MAX_OUTPUT_ENTRIES"`
	ChildCacheSize   int      `toml:"child_cache_size" env:"CHILD_CACHE_SIZE"`
	LoopQueueSize    int      `toml:"loop_queue_size" env:"LOOP_QUEUE_SIZE"`
	StackDepth       int      `toml:"stack_depth" env:"STACK_DEPTH"`
	RequestTimeout   Duration `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// AdapterConfig selects the debug adapter.
type AdapterConfig struct {
	// Command starts the adapter over stdio, e.g. ["dlv", "dap"]. When
	// empty, the preset named by ID is used.
	Command []string `toml:"command" env:"COMMAND" envSeparator:" "`
	// Address connects to a running adapter instead of starting one.
	Address string `toml:"address" env:"ADDRESS"`
	// ID is sent as adapterID in the initialize request.
	ID string `toml:"id" env:"ID"`
	// Mode is passed as the launch mode, e.g. "debug" or "exec". Empty
	// means the preset's default.
	Mode string `toml:"mode" env:"MODE"`
}

// StoreConfig selects where breakpoints and watches are kept.
type StoreConfig struct {
	// Backend is file, sqlite or none.
	Backend string `toml:"backend" env:"BACKEND"`
	Path    string `toml:"path" env:"PATH"`
	// Watch reloads the file store when it is edited externally.
	Watch bool `toml:"watch" env:"WATCH"`
}

// Duration is a time.Duration written as "10s" in TOML and the environment.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Debug: DebugConfig{
			MaxOutputEntries: 10000,
			ChildCacheSize:   256,
			LoopQueueSize:    256,
			StackDepth:       50,
			RequestTimeout:   Duration{10 * time.Second},
		},
		Adapter: AdapterConfig{
			ID: "go",
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    defaultStorePath(),
		},
	}
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".debugstate", "config.toml")
	}
	return filepath.Join(dir, "debugstate", "config.toml")
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".debugstate", "state.yaml")
	}
	return filepath.Join(dir, "debugstate", "state.yaml")
}

// Load builds the configuration from defaults, the TOML file at path and the
// environment, then validates it. An empty path means DefaultPath, which may
// be missing. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, ErrFileNotFound) {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return c.parse(path, data)
}

// parse decodes TOML over c. Unknown keys are rejected.
func (c *Config) parse(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

func (c *Config) loadEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, format string, args ...any) {
		if !ok {
			errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		check(false, "log.level", "unknown level %q", c.Log.Level)
	}
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format", "must be text or json, got %q", c.Log.Format)

	check(c.Debug.MaxOutputEntries >= 0, "debug.max_output_entries", "must not be negative")
	check(c.Debug.ChildCacheSize > 0, "debug.child_cache_size", "must be positive")
	check(c.Debug.LoopQueueSize > 0, "debug.loop_queue_size", "must be positive")
	check(c.Debug.StackDepth > 0, "debug.stack_depth", "must be positive")
	check(c.Debug.RequestTimeout.Duration > 0, "debug.request_timeout", "must be positive")

	if len(c.Adapter.Command) == 0 && c.Adapter.Address == "" {
		_, known := adapters.Lookup(c.Adapter.ID)
		check(known, "adapter", "command or address is required for adapter %q", c.Adapter.ID)
	}

	switch c.Store.Backend {
	case "file", "sqlite":
		check(c.Store.Path != "", "store.path", "required for backend %q", c.Store.Backend)
	case "none":
	default:
		check(false, "store.backend", "must be file, sqlite or none, got %q", c.Store.Backend)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidationFailed, errors.Join(errs...))
}
