package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultLogLevel      = "info"
	DefaultWatchDebounce = 250 * time.Millisecond
	DefaultLuaTimeout    = 5 * time.Second
)

// Config is the host shell configuration.
type Config struct {
	LogLevel string        `toml:"log_level" yaml:"log_level"`
	Plugins  PluginsConfig `toml:"plugins" yaml:"plugins"`
	Lua      LuaConfig     `toml:"lua" yaml:"lua"`
}

// PluginsConfig configures plugin discovery and the registry.
type PluginsConfig struct {
	// Paths are directories searched for plugins, in priority order.
	Paths []string `toml:"paths" yaml:"paths"`

	// Disabled lists plugin ids that are discovered but never loaded.
	Disabled []string `toml:"disabled" yaml:"disabled"`

	// DuplicatePolicy is "reject" or "replace".
	DuplicatePolicy string `toml:"duplicate_policy" yaml:"duplicate_policy"`

	// RevokeOnUnload removes a plugin's registrations when it is unloaded.
	RevokeOnUnload bool `toml:"revoke_on_unload" yaml:"revoke_on_unload"`

	// Watch enables hot reload of plugin directories.
	Watch bool `toml:"watch" yaml:"watch"`

	// WatchDebounce coalesces bursts of file events.
	WatchDebounce Duration `toml:"watch_debounce" yaml:"watch_debounce"`
}

// LuaConfig configures the scripted plugin runtime.
type LuaConfig struct {
	// ExecutionTimeout bounds each call into a plugin script. Zero disables it.
	ExecutionTimeout Duration `toml:"execution_timeout" yaml:"execution_timeout"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Plugins: PluginsConfig{
			Paths:           DefaultPluginPaths(),
			DuplicatePolicy: "reject",
			RevokeOnUnload:  true,
			WatchDebounce:   Duration(DefaultWatchDebounce),
		},
		Lua: LuaConfig{
			ExecutionTimeout: Duration(DefaultLuaTimeout),
		},
	}
}

// DefaultPluginPaths returns the default plugin search paths.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 2)

	// User plugins: ~/.config/birch/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "birch", "plugins"))
	}

	// Project plugins: .birch/plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".birch", "plugins"))
	}

	return paths
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "trace", "debug", "info", "warn", "warning", "error", "off":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	switch c.Plugins.DuplicatePolicy {
	case "", "reject", "replace":
	default:
		return fmt.Errorf("%w: plugins.duplicate_policy %q (want reject or replace)", ErrInvalidConfig, c.Plugins.DuplicatePolicy)
	}

	if c.Plugins.WatchDebounce < 0 {
		return fmt.Errorf("%w: plugins.watch_debounce must not be negative", ErrInvalidConfig)
	}
	if c.Lua.ExecutionTimeout < 0 {
		return fmt.Errorf("%w: lua.execution_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PluginPaths returns plugins.paths with a leading "~/" expanded.
func (c *Config) PluginPaths() []string {
	home, _ := os.UserHomeDir()
	paths := make([]string, 0, len(c.Plugins.Paths))
	for _, p := range c.Plugins.Paths {
		if home != "" && (p == "~" || strings.HasPrefix(p, "~/")) {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
		paths = append(paths, p)
	}
	return paths
}

// IsDisabled reports whether a plugin id is listed in plugins.disabled.
func (c *Config) IsDisabled(id string) bool {
	for _, d := range c.Plugins.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

// Duration is a time.Duration that decodes from strings like "250ms".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
