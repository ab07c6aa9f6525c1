package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/dshills/birch/internal/config"
	"github.com/dshills/birch/internal/plugin"
	"github.com/dshills/birch/internal/plugin/api"
	"github.com/dshills/birch/internal/plugin/loader"
	"github.com/dshills/birch/internal/plugin/lua"
	"github.com/dshills/birch/internal/plugin/watcher"
)

// Owner is the owner recorded on notifications raised by the shell itself.
// No plugin may use it as an id.
const Owner = "birch"

// Shell errors.
var (
	// ErrDisabled is returned when loading a plugin listed in plugins.disabled.
	ErrDisabled = errors.New("plugin is disabled")

	// ErrReservedID is returned for a plugin that uses the shell's own id.
	ErrReservedID = errors.New("plugin id is reserved")

	// ErrClosed is returned when using a closed shell.
	ErrClosed = errors.New("shell is closed")
)

// Shell is the host side of the plugin system. It owns the capability
// surface and the registry, discovers plugins on disk, and surfaces plugin
// failures to the user as notifications.
type Shell struct {
	cfg      config.Config
	logger   hclog.Logger
	surface  *Surface
	registry *plugin.Registry
	loader   *loader.Loader

	forward     func(PostedNotification)
	unsubscribe func()

	mu      sync.Mutex
	paths   map[string]string // plugin path to id, from the last discovery
	watcher *watcher.Watcher
	closed  bool

	// Loads and reloads in flight; Close waits for them
	ops sync.WaitGroup
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Shell) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotificationForward sets a callback that receives every notification
// posted to the sink.
func WithNotificationForward(fn func(PostedNotification)) Option {
	return func(s *Shell) {
		s.forward = fn
	}
}

// New creates a shell from the configuration.
func New(cfg config.Config, opts ...Option) (*Shell, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := plugin.ParseDuplicatePolicy(cfg.Plugins.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	s := &Shell{
		cfg:    cfg,
		logger: hclog.NewNullLogger(),
		paths:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.surface = NewSurface(s.forward)
	s.registry = plugin.NewRegistry(s.surface,
		plugin.WithLogger(s.logger),
		plugin.WithDuplicatePolicy(policy),
		plugin.WithRevokeOnUnload(cfg.Plugins.RevokeOnUnload),
	)
	s.loader = loader.New(cfg.PluginPaths(),
		loader.WithLogger(s.logger),
		loader.WithLuaOptions(lua.WithExecutionTimeout(cfg.Lua.ExecutionTimeout.Std())),
	)
	s.unsubscribe = s.registry.Subscribe(s.handleEvent)

	return s, nil
}

// Registry returns the plugin registry.
func (s *Shell) Registry() *plugin.Registry { return s.registry }

// Surface returns the capability surface and its providers.
func (s *Shell) Surface() *Surface { return s.surface }

// Loader returns the plugin loader.
func (s *Shell) Loader() *loader.Loader { return s.loader }

// Config returns the configuration the shell was created with.
func (s *Shell) Config() config.Config { return s.cfg }

// Load loads a descriptor into the registry.
func (s *Shell) Load(ctx context.Context, d *plugin.Descriptor) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	if d != nil && d.ID == Owner {
		return fmt.Errorf("%w: %q", ErrReservedID, d.ID)
	}
	return s.registry.Load(ctx, d)
}

// Start loads every plugin in the search paths and, if configured,
// starts watching them for changes.
func (s *Shell) Start(ctx context.Context) error {
	err := s.LoadAll(ctx)
	if s.cfg.Plugins.Watch {
		if werr := s.Watch(); werr != nil {
			err = errors.Join(err, werr)
		}
	}
	return err
}

// LoadAll discovers plugins and loads those not disabled. Discovery and
// activation failures are joined; one failing plugin does not stop the rest.
func (s *Shell) LoadAll(ctx context.Context) error {
	infos, discoverErr := s.loader.Discover()

	var errs []error
	if discoverErr != nil {
		errs = append(errs, discoverErr)
	}
	for _, info := range infos {
		s.remember(info)
		if err := s.loadInfo(ctx, info); err != nil {
			if errors.Is(err, ErrDisabled) {
				continue
			}
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("loading plugins: %w", errors.Join(errs...))
	}
	return nil
}

// LoadPlugin finds a plugin by id in the search paths and loads it.
func (s *Shell) LoadPlugin(ctx context.Context, id string) error {
	info, err := s.loader.Find(id)
	if err != nil {
		return err
	}
	s.remember(info)
	return s.loadInfo(ctx, info)
}

func (s *Shell) loadInfo(ctx context.Context, info *loader.Info) error {
	log := s.logger.With("plugin", info.ID)

	if s.cfg.IsDisabled(info.ID) {
		log.Debug("skipping disabled plugin")
		return fmt.Errorf("%w: %s", ErrDisabled, info.ID)
	}

	d, err := s.loader.Descriptor(info)
	if err != nil {
		log.Warn("plugin cannot be loaded", "path", info.Path, "error", err)
		cause := info.Err
		if cause == nil {
			cause = err
		}
		s.notify(api.NotificationError, fmt.Sprintf("Plugin %q cannot be loaded: %v", info.ID, cause))
		return err
	}
	return s.Load(ctx, d)
}

// Reload unloads a plugin if it is active, discards a failed entry, and
// loads it again from disk. A failing deactivate hook does not stop the
// reload.
func (s *Shell) Reload(ctx context.Context, id string) error {
	done, err := s.begin()
	if err != nil {
		return err
	}
	defer done()

	if err := s.discard(ctx, id); err != nil {
		return err
	}
	return s.LoadPlugin(ctx, id)
}

// discard removes any registry entry for id.
func (s *Shell) discard(ctx context.Context, id string) error {
	entry, ok := s.registry.Query(id)
	if !ok {
		return nil
	}
	switch entry.State {
	case plugin.StateActive:
		if err := s.registry.Unload(ctx, id); err != nil && !errors.Is(err, plugin.ErrDeactivationFailed) {
			return err
		}
	case plugin.StateFailedActivation:
		if err := s.registry.Remove(id); err != nil {
			return err
		}
	default:
		return &plugin.StateError{ID: id, Op: "reload", State: entry.State}
	}
	return nil
}

// Watch starts reloading plugins when their files change.
func (s *Shell) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.watcher != nil {
		return nil
	}

	w, err := watcher.New(s.loader.Paths(), s.handleChange,
		watcher.WithDebounce(s.cfg.Plugins.WatchDebounce.Std()),
		watcher.WithLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("starting plugin watcher: %w", err)
	}
	s.watcher = w
	return nil
}

// handleChange reloads the plugin at pluginPath, loads it if it is new, or
// unloads it if it was deleted.
func (s *Shell) handleChange(pluginPath string) {
	if s.checkOpen() != nil {
		return
	}
	ctx := context.Background()

	s.mu.Lock()
	id, known := s.paths[pluginPath]
	s.mu.Unlock()

	if _, err := os.Stat(pluginPath); os.IsNotExist(err) {
		if !known {
			return
		}
		s.forget(pluginPath)
		s.logger.Info("plugin removed from disk", "plugin", id)
		if err := s.discard(ctx, id); err != nil {
			s.logger.Warn("unloading removed plugin failed", "plugin", id, "error", err)
		}
		return
	}

	if !known {
		info := s.inspect(pluginPath)
		if info == nil {
			return
		}
		id = info.ID
	}

	s.logger.Info("reloading plugin", "plugin", id, "path", pluginPath)
	if err := s.Reload(ctx, id); err != nil && !errors.Is(err, ErrDisabled) {
		s.logger.Warn("plugin reload failed", "plugin", id, "error", err)
	}
}

// inspect discovers the plugin at pluginPath, if any.
func (s *Shell) inspect(pluginPath string) *loader.Info {
	infos, _ := s.loader.Discover()
	for _, info := range infos {
		if info.Path == pluginPath {
			s.remember(info)
			return info
		}
	}
	return nil
}

func (s *Shell) remember(info *loader.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[info.Path] = info.ID
}

func (s *Shell) forget(pluginPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, pluginPath)
}

// handleEvent surfaces plugin failures as notifications.
func (s *Shell) handleEvent(event plugin.Event) {
	switch event.Type {
	case plugin.EventActivationFailed:
		s.notify(api.NotificationError,
			fmt.Sprintf("Plugin %q failed to activate: %v", event.Plugin, event.Error))
	case plugin.EventDeactivationFailed:
		s.notify(api.NotificationWarning,
			fmt.Sprintf("Plugin %q failed to deactivate cleanly: %v", event.Plugin, event.Error))
	}
}

func (s *Shell) notify(level api.NotificationLevel, msg string) {
	if _, err := s.surface.Notifications.Post(api.Notification{
		Owner:   Owner,
		Message: msg,
		Level:   level,
	}); err != nil {
		s.logger.Error("posting notification failed", "error", err)
	}
}

// Close stops watching, waits for loads and reloads in flight, and unloads
// every plugin in reverse activation order.
func (s *Shell) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	var errs []error
	if w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.ops.Wait()
	if err := s.registry.UnloadAll(ctx); err != nil {
		errs = append(errs, err)
	}
	s.unsubscribe()
	return errors.Join(errs...)
}

// begin registers an operation Close must wait for. The returned func
// marks it finished.
func (s *Shell) begin() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.ops.Add(1)
	return s.ops.Done, nil
}

func (s *Shell) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
