package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "reject", cfg.Plugins.DuplicatePolicy)
	assert.True(t, cfg.Plugins.RevokeOnUnload)
	assert.False(t, cfg.Plugins.Watch)
	assert.Equal(t, DefaultWatchDebounce, cfg.Plugins.WatchDebounce.Std())
	assert.Equal(t, DefaultLuaTimeout, cfg.Lua.ExecutionTimeout.Std())
	assert.NotEmpty(t, cfg.Plugins.Paths)
	assert.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "birch.toml", `
log_level = "debug"

[plugins]
paths = ["/opt/birch/plugins"]
disabled = ["noisy"]
duplicate_policy = "replace"
revoke_on_unload = false
watch = true
watch_debounce = "1s"

[lua]
execution_timeout = "2s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"/opt/birch/plugins"}, cfg.Plugins.Paths)
	assert.Equal(t, []string{"noisy"}, cfg.Plugins.Disabled)
	assert.Equal(t, "replace", cfg.Plugins.DuplicatePolicy)
	assert.False(t, cfg.Plugins.RevokeOnUnload)
	assert.True(t, cfg.Plugins.Watch)
	assert.Equal(t, time.Second, cfg.Plugins.WatchDebounce.Std())
	assert.Equal(t, 2*time.Second, cfg.Lua.ExecutionTimeout.Std())
	assert.True(t, cfg.IsDisabled("noisy"))
	assert.False(t, cfg.IsDisabled("other"))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "birch.yaml", `
log_level: warn
plugins:
  paths: [/srv/plugins, /usr/share/birch]
  watch_debounce: 50ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"/srv/plugins", "/usr/share/birch"}, cfg.Plugins.Paths)
	assert.Equal(t, 50*time.Millisecond, cfg.Plugins.WatchDebounce.Std())
	// unspecified keys keep their defaults
	assert.Equal(t, "reject", cfg.Plugins.DuplicatePolicy)
	assert.True(t, cfg.Plugins.RevokeOnUnload)
}

func TestLoadKeepsDefaultPathsWhenUnset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "birch.toml", `log_level = "error"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPluginPaths(), cfg.Plugins.Paths)
}

func TestLoadEmptyYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "birch.yml", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().LogLevel, cfg.LogLevel)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "reject", cfg.Plugins.DuplicatePolicy)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"bad policy", "a.toml", "[plugins]\nduplicate_policy = \"overwrite\"\n", ErrInvalidConfig},
		{"bad level", "b.yaml", "log_level: loud\n", ErrInvalidConfig},
		{"unsupported", "c.ini", "x=1", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, tt.file, tt.content))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadParseErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml syntax", "a.toml", "log_level = \n"},
		{"toml unknown key", "b.toml", "colour = \"red\"\n"},
		{"yaml unknown key", "c.yaml", "colour: red\n"},
		{"bad duration", "d.toml", "[plugins]\nwatch_debounce = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, tt.file, tt.content))
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", Find(dir))

	yamlPath := writeFile(t, dir, "birch.yaml", "log_level: info\n")
	assert.Equal(t, yamlPath, Find(dir))

	tomlPath := writeFile(t, dir, "birch.toml", "log_level = \"info\"\n")
	assert.Equal(t, tomlPath, Find(dir))
}

func TestPluginPathsExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := Config{Plugins: PluginsConfig{Paths: []string{"~/plugins", "/abs"}}}
	assert.Equal(t, []string{filepath.Join(home, "plugins"), "/abs"}, cfg.PluginPaths())
}
