package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/birch/internal/plugin"
	"github.com/dshills/birch/internal/plugin/api"
)

// createTestPluginDir creates a plugin directory with the given files.
func createTestPluginDir(t *testing.T, base, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func ids(infos []*Info) []string {
	result := make([]string, 0, len(infos))
	for _, info := range infos {
		result = append(result, info.ID)
	}
	return result
}

func TestDiscoverEmpty(t *testing.T) {
	l := New([]string{t.TempDir(), filepath.Join(t.TempDir(), "missing")})

	plugins, err := l.Discover()
	if err != nil {
		t.Errorf("Discover() error = %v", err)
	}
	if len(plugins) != 0 {
		t.Errorf("Discover() found %d plugins in empty dir", len(plugins))
	}
}

func TestDiscoverManifestFormats(t *testing.T) {
	dir := t.TempDir()

	createTestPluginDir(t, dir, "json-plugin", map[string]string{
		"plugin.json": `{"id": "json.plugin", "name": "JSON", "version": "1.0.0", "main": "main.lua"}`,
		"main.lua":    "function activate(birch) end",
	})
	createTestPluginDir(t, dir, "toml-plugin", map[string]string{
		"plugin.toml": "id = \"toml-plugin\"\ndescription = \"from toml\"\n",
		"init.lua":    "function activate(birch) end",
	})
	createTestPluginDir(t, dir, "yaml-plugin", map[string]string{
		"plugin.yaml": "name: YAML Plugin\nversion: 2.0.0\n",
		"init.lua":    "function activate(birch) end",
	})
	createTestPluginDir(t, dir, "bare", map[string]string{
		"init.lua": "function activate(birch) end",
	})
	if err := os.WriteFile(filepath.Join(dir, "single.lua"), []byte("function activate(birch) end"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a plugin"), 0644); err != nil {
		t.Fatal(err)
	}

	plugins, err := New([]string{dir}).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	want := []string{"bare", "json.plugin", "single", "toml-plugin", "yaml-plugin"}
	if diff := cmp.Diff(want, ids(plugins)); diff != "" {
		t.Errorf("Discover() ids mismatch (-want +got):\n%s", diff)
	}

	byID := make(map[string]*Info)
	for _, info := range plugins {
		if info.Err != nil {
			t.Errorf("plugin %s: unexpected error %v", info.ID, info.Err)
		}
		byID[info.ID] = info
	}

	if got := byID["json.plugin"].Manifest.MainPath(); got != filepath.Join(dir, "json-plugin", "main.lua") {
		t.Errorf("json main path = %q", got)
	}
	if got := byID["toml-plugin"].Manifest.Description; got != "from toml" {
		t.Errorf("toml description = %q", got)
	}
	yamlManifest := byID["yaml-plugin"].Manifest
	if yamlManifest.Version != "2.0.0" || yamlManifest.DisplayName() != "YAML Plugin" {
		t.Errorf("yaml manifest = %s", yamlManifest)
	}
	if got := byID["bare"].Manifest.Version; got != DefaultVersion {
		t.Errorf("bare version = %q, want %q", got, DefaultVersion)
	}
	single := byID["single"]
	if !single.SingleFile || single.Manifest.MainPath() != filepath.Join(dir, "single.lua") {
		t.Errorf("single-file plugin = %+v", single)
	}
}

func TestDiscoverManifestPrecedence(t *testing.T) {
	dir := t.TempDir()
	createTestPluginDir(t, dir, "both", map[string]string{
		"plugin.json": `{"id": "from-json"}`,
		"plugin.toml": `id = "from-toml"`,
		"init.lua":    "",
	})

	plugins, _ := New([]string{dir}).Discover()
	if len(plugins) != 1 || plugins[0].ID != "from-json" {
		t.Errorf("Discover() = %v, want [from-json]", ids(plugins))
	}
}

func TestDiscoverFirstPathWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	createTestPluginDir(t, first, "dup", map[string]string{"init.lua": "-- first"})
	createTestPluginDir(t, second, "dup", map[string]string{"init.lua": "-- second"})
	createTestPluginDir(t, second, "other", map[string]string{"init.lua": ""})

	plugins, err := New([]string{first, second}).Discover()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"dup", "other"}, ids(plugins)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if plugins[0].Path != filepath.Join(first, "dup") {
		t.Errorf("dup path = %q, want first search path", plugins[0].Path)
	}
}

func TestDiscoverRetainsErrors(t *testing.T) {
	dir := t.TempDir()
	createTestPluginDir(t, dir, "empty", nil)
	createTestPluginDir(t, dir, "bad-json", map[string]string{"plugin.json": "{"})
	createTestPluginDir(t, dir, "bad-id", map[string]string{"plugin.toml": `id = "Bad_ID"`})
	createTestPluginDir(t, dir, "no-main", map[string]string{"plugin.json": `{"main": "missing.lua"}`})
	createTestPluginDir(t, dir, "escape", map[string]string{"plugin.json": `{"main": "../x.lua"}`})

	plugins, err := New([]string{dir}).Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(plugins) != 5 {
		t.Fatalf("Discover() found %d plugins, want 5", len(plugins))
	}
	for _, info := range plugins {
		if info.Err == nil {
			t.Errorf("plugin %s: expected an error", info.ID)
		}
	}

	byID := make(map[string]*Info)
	for _, info := range plugins {
		byID[info.ID] = info
	}
	if !errors.Is(byID["empty"].Err, ErrNoEntryPoint) {
		t.Errorf("empty: err = %v, want ErrNoEntryPoint", byID["empty"].Err)
	}
	if !errors.Is(byID["bad-id"].Err, ErrInvalidID) {
		t.Errorf("bad-id: err = %v, want ErrInvalidID", byID["bad-id"].Err)
	}
	if !errors.Is(byID["escape"].Err, ErrInvalidMain) {
		t.Errorf("escape: err = %v, want ErrInvalidMain", byID["escape"].Err)
	}
}

func TestFind(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	createTestPluginDir(t, second, "alpha", map[string]string{"init.lua": ""})
	createTestPluginDir(t, second, "renamed-dir", map[string]string{
		"plugin.json": `{"id": "beta"}`,
		"init.lua":    "",
	})
	if err := os.WriteFile(filepath.Join(first, "gamma.lua"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	l := New([]string{first, second})

	for _, id := range []string{"alpha", "beta", "gamma"} {
		info, err := l.Find(id)
		if err != nil {
			t.Errorf("Find(%q) error = %v", id, err)
			continue
		}
		if info.ID != id {
			t.Errorf("Find(%q).ID = %q", id, info.ID)
		}
	}

	if _, err := l.Find("delta"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Find(delta) error = %v, want ErrPluginNotFound", err)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"a", true},
		{"my-plugin", true},
		{"org.tool2", true},
		{"", false},
		{"1plugin", false},
		{"My-Plugin", false},
		{"has space", false},
		{"under_score", false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

type nopCaps struct{}

func (nopCaps) APIVersion() int { return api.Version }
func (nopCaps) Editor() api.Editor { return nopEditor{} }
func (nopCaps) UI() api.UI { return nopUI{} }

type nopEditor struct{}

func (nopEditor) AddCommand(api.Command) error { return nil }
func (nopEditor) RegisterLanguage(api.Language) error { return nil }

type nopUI struct{}

func (nopUI) ShowNotification(api.Notification) error { return nil }
func (nopUI) RegisterSidebarView(api.SidebarView) error { return nil }

func TestDescriptorsLoadIntoRegistry(t *testing.T) {
	dir := t.TempDir()
	createTestPluginDir(t, dir, "good", map[string]string{
		"plugin.json": `{"name": "Good", "version": "1.2.3"}`,
		"init.lua":    "function activate(birch) end",
	})
	createTestPluginDir(t, dir, "broken", nil)

	l := New([]string{dir})
	infos, err := l.Discover()
	if err != nil {
		t.Fatal(err)
	}

	descriptors, err := l.Descriptors(infos)
	if !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("Descriptors() error = %v, want ErrNoEntryPoint", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("Descriptors() = %d, want 1", len(descriptors))
	}

	d := descriptors[0]
	if d.ID != "good" || d.Name != "Good" || d.Version != "1.2.3" {
		t.Errorf("descriptor = %s", d)
	}

	reg := plugin.NewRegistry(nopCaps{})
	if err := reg.Load(context.Background(), d); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"good"}, reg.ListActive()); diff != "" {
		t.Errorf("ListActive() mismatch (-want +got):\n%s", diff)
	}
}
