package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/dshills/birch/internal/logging"
	"github.com/dshills/birch/internal/plugin"
	"github.com/dshills/birch/internal/plugin/lua"
)

// Loader errors.
var (
	// ErrNoEntryPoint is returned for a directory with neither a manifest nor init.lua.
	ErrNoEntryPoint = errors.New("plugin has no manifest or init.lua")

	// ErrPluginNotFound is returned when no search path holds the plugin.
	ErrPluginNotFound = errors.New("plugin not found in search paths")
)

// Info describes a discovered plugin.
type Info struct {
	ID string

	// Path is the plugin directory, or the script file for single-file plugins.
	Path string

	// Manifest is nil when Err is set.
	Manifest *Manifest

	// SingleFile is set for plugins discovered as a bare name.lua file.
	SingleFile bool

	// Err holds a discovery error; the plugin cannot be loaded.
	Err error
}

// Loader discovers plugins in a list of search paths and builds
// registry descriptors for them.
type Loader struct {
	// Search paths for plugins (checked in order)
	paths []string

	logger  hclog.Logger
	luaOpts []lua.StateOption
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. Each plugin's print output goes to a
// sub-logger tagged with its id.
func WithLogger(logger hclog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger.Named("loader")
		}
	}
}

// WithLuaOptions sets options applied to every script state.
func WithLuaOptions(opts ...lua.StateOption) Option {
	return func(l *Loader) {
		l.luaOpts = append(l.luaOpts, opts...)
	}
}

// New creates a loader over the given search paths.
func New(paths []string, opts ...Option) *Loader {
	l := &Loader{
		paths:  append([]string(nil), paths...),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Paths returns the search paths.
func (l *Loader) Paths() []string {
	return append([]string(nil), l.paths...)
}

// Discover finds all plugins in the search paths, sorted by id.
// When two paths hold the same id, the earlier path wins. Plugins that
// could not be inspected are returned with Err set. The returned error
// reports search paths that exist but could not be read.
func (l *Loader) Discover() ([]*Info, error) {
	discovered := make(map[string]*Info)
	var pathErrors []error

	for _, basePath := range l.paths {
		if err := l.discoverInPath(basePath, discovered); err != nil {
			l.logger.Warn("cannot read plugin path", "path", basePath, "error", err)
			pathErrors = append(pathErrors, err)
		}
	}

	plugins := make([]*Info, 0, len(discovered))
	for _, info := range discovered {
		plugins = append(plugins, info)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].ID < plugins[j].ID
	})

	return plugins, errors.Join(pathErrors...)
}

// discoverInPath finds plugins in a single directory.
func (l *Loader) discoverInPath(basePath string, discovered map[string]*Info) error {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Not an error if path doesn't exist
		}
		return err
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		var info *Info
		if entry.IsDir() {
			info = Inspect(filepath.Join(basePath, entry.Name()))
		} else if filepath.Ext(entry.Name()) == ".lua" {
			info = inspectFile(filepath.Join(basePath, entry.Name()))
		} else {
			continue
		}

		// First path wins
		if existing, exists := discovered[info.ID]; exists {
			l.logger.Debug("plugin shadowed", "plugin", info.ID, "path", info.Path, "by", existing.Path)
			continue
		}
		discovered[info.ID] = info
	}
	return nil
}

// Inspect examines a plugin directory.
func Inspect(dir string) *Info {
	info := &Info{
		ID:   filepath.Base(dir),
		Path: dir,
	}

	if manifestPath := FindManifest(dir); manifestPath != "" {
		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			info.Err = fmt.Errorf("invalid manifest: %w", err)
			return info
		}
		info.ID = manifest.ID
		info.Manifest = manifest
		if _, err := os.Stat(manifest.MainPath()); err != nil {
			info.Err = fmt.Errorf("entry script %s: %w", manifest.Main, err)
		}
		return info
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultMain)); err == nil {
		manifest := NewManifestMinimal(info.ID, dir, DefaultMain)
		if err := manifest.Validate(); err != nil {
			info.Err = err
			return info
		}
		info.Manifest = manifest
		return info
	}

	info.Err = ErrNoEntryPoint
	return info
}

// inspectFile examines a single-file plugin.
func inspectFile(path string) *Info {
	id := strings.TrimSuffix(filepath.Base(path), ".lua")
	info := &Info{
		ID:         id,
		Path:       path,
		SingleFile: true,
	}

	manifest := NewManifestMinimal(id, filepath.Dir(path), filepath.Base(path))
	if err := manifest.Validate(); err != nil {
		info.Err = err
		return info
	}
	info.Manifest = manifest
	return info
}

// Find searches the paths for a plugin id. The first match wins.
func (l *Loader) Find(id string) (*Info, error) {
	for _, basePath := range l.paths {
		dir := filepath.Join(basePath, id)
		if stat, err := os.Stat(dir); err == nil && stat.IsDir() {
			if info := Inspect(dir); info.ID == id {
				return info, nil
			}
		}

		luaPath := filepath.Join(basePath, id+".lua")
		if _, err := os.Stat(luaPath); err == nil {
			return inspectFile(luaPath), nil
		}
	}

	// The id may come from a manifest in a differently named directory.
	plugins, _ := l.Discover()
	for _, info := range plugins {
		if info.ID == id {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
}

// Descriptor builds a registry descriptor for a discovered plugin.
func (l *Loader) Descriptor(info *Info) (*plugin.Descriptor, error) {
	if info.Err != nil {
		return nil, fmt.Errorf("plugin %q: %w", info.ID, info.Err)
	}

	opts := append([]lua.StateOption{
		lua.WithLogger(logging.ForPlugin(l.logger, info.ID)),
	}, l.luaOpts...)

	m := info.Manifest
	return lua.NewDescriptor(lua.Script{
		ID:          m.ID,
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Path:        m.MainPath(),
	}, opts...), nil
}

// Descriptors builds descriptors for every loadable plugin in infos.
// Plugins with discovery errors are skipped and their errors joined.
func (l *Loader) Descriptors(infos []*Info) ([]*plugin.Descriptor, error) {
	descriptors := make([]*plugin.Descriptor, 0, len(infos))
	var errs []error
	for _, info := range infos {
		d, err := l.Descriptor(info)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, errors.Join(errs...)
}
