package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Debug.MaxOutputEntries != 10000 {
		t.Errorf("expected console cap 10000, got %d", cfg.Debug.MaxOutputEntries)
	}
	if cfg.Debug.RequestTimeout.Duration != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.Debug.RequestTimeout)
	}
	if len(cfg.Adapter.Command) != 0 || cfg.Adapter.ID != "go" {
		t.Errorf("expected the go adapter preset, got %+v", cfg.Adapter)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
format = "json"

[debug]
max_output_entries = 500
stack_depth = 20
request_timeout = "2s"

[adapter]
command = ["debugpy-adapter"]
id = "python"

[store]
backend = "sqlite"
path = "/tmp/debug.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Debug.MaxOutputEntries != 500 || cfg.Debug.StackDepth != 20 {
		t.Errorf("unexpected debug config %+v", cfg.Debug)
	}
	if cfg.Debug.RequestTimeout.Duration != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.Debug.RequestTimeout)
	}
	if cfg.Debug.ChildCacheSize != 256 {
		t.Errorf("expected unset values to keep defaults, got %d", cfg.Debug.ChildCacheSize)
	}
	if cfg.Adapter.ID != "python" || len(cfg.Adapter.Command) != 1 {
		t.Errorf("unexpected adapter config %+v", cfg.Adapter)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/debug.db" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "warn"

[debug]
stack_depth = 20
`)
	t.Setenv("DEBUGSTATE_LOG_LEVEL", "error")
	t.Setenv("DEBUGSTATE_DEBUG_REQUEST_TIMEOUT", "750ms")
	t.Setenv("DEBUGSTATE_ADAPTER_COMMAND", "node dap.js")
	t.Setenv("DEBUGSTATE_STORE_BACKEND", "none")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Log.Level != "error" {
		t.Errorf("expected env level, got %q", cfg.Log.Level)
	}
	if cfg.Debug.StackDepth != 20 {
		t.Errorf("expected file value kept when env unset, got %d", cfg.Debug.StackDepth)
	}
	if cfg.Debug.RequestTimeout.Duration != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.Debug.RequestTimeout)
	}
	if len(cfg.Adapter.Command) != 2 || cfg.Adapter.Command[1] != "dap.js" {
		t.Errorf("unexpected adapter command %v", cfg.Adapter.Command)
	}
	if cfg.Store.Backend != "none" {
		t.Errorf("expected backend none, got %q", cfg.Store.Backend)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults when the default file is missing, got %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default level, got %q", cfg.Log.Level)
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := writeConfig(t, "[log]\nlevel = \n")

	_, err := Load(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Path != path {
		t.Errorf("expected path %s, got %s", path, perr.Path)
	}
	if perr.Line != 2 {
		t.Errorf("expected line 2, got %d", perr.Line)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "[debug]\nstack_dept = 3\n")

	_, err := Load(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("expected ParseError for unknown key, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative cap", func(c *Config) { c.Debug.MaxOutputEntries = -1 }, "debug.max_output_entries"},
		{"zero cache", func(c *Config) { c.Debug.ChildCacheSize = 0 }, "debug.child_cache_size"},
		{"zero depth", func(c *Config) { c.Debug.StackDepth = 0 }, "debug.stack_depth"},
		{"zero timeout", func(c *Config) { c.Debug.RequestTimeout = Duration{} }, "debug.request_timeout"},
		{"no adapter", func(c *Config) { c.Adapter.ID = "cobol"; c.Adapter.Address = "" }, "adapter"},
		{"bad backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"no store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("expected ErrValidationFailed, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, err)
			}
		})
	}
}

func TestValidate_UnlimitedConsole(t *testing.T) {
	cfg := Default()
	cfg.Debug.MaxOutputEntries = 0
	cfg.Store.Backend = "none"
	cfg.Store.Path = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestParseError_Error(t *testing.T) {
	tests := []struct {
		err      *ParseError
		expected string
	}{
		{&ParseError{Path: "a.toml", Line: 3, Column: 7, Message: "bad"}, "parse error in a.toml at line 3, column 7: bad"},
		{&ParseError{Path: "a.toml", Line: 3, Message: "bad"}, "parse error in a.toml at line 3: bad"},
		{&ParseError{Path: "a.toml", Message: "bad"}, "parse error in a.toml: bad"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}
