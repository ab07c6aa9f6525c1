package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/dshills/birch/internal/plugin/api"
)

// DuplicatePolicy decides what a load does when the id is held by an active entry.
type DuplicatePolicy int

const (
	// DuplicateReject fails the load with ErrDuplicateID.
	DuplicateReject DuplicatePolicy = iota

	// DuplicateReplace unloads the active entry and loads the new descriptor.
	// Entries still loading or unloading are rejected under either policy.
	DuplicateReplace
)

// String returns a string representation of the policy.
func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateReject:
		return "reject"
	case DuplicateReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy parses a policy name.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "reject":
		return DuplicateReject, nil
	case "replace":
		return DuplicateReplace, nil
	default:
		return DuplicateReject, fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Entry is a snapshot of the registry's record for one plugin.
type Entry struct {
	Descriptor Descriptor
	State      State

	// Err is the activation error; set only in StateFailedActivation.
	Err error

	// LoadID identifies the load attempt that created the entry.
	LoadID string

	LoadedAt    time.Time
	ActivatedAt time.Time
}

// ID returns the plugin id.
func (e Entry) ID() string {
	return e.Descriptor.ID
}

// entry is the mutable record owned by the registry. Guarded by Registry.mu.
type entry struct {
	descriptor  Descriptor
	state       State
	err         error
	loadID      string
	loadedAt    time.Time
	activatedAt time.Time
}

func (e *entry) snapshot() Entry {
	return Entry{
		Descriptor:  e.descriptor,
		State:       e.state,
		Err:         e.err,
		LoadID:      e.loadID,
		LoadedAt:    e.loadedAt,
		ActivatedAt: e.activatedAt,
	}
}

// Registry owns the installed plugins and their activation lifecycle.
//
// Load and Unload hold the lock only while mutating the entry map; plugin
// hooks run outside it. The loading and unloading states keep an id
// exclusively held while a hook is in flight, which serializes operations
// per id while letting distinct ids interleave.
type Registry struct {
	mu sync.RWMutex

	// Capability surface passed unchanged to every activate hook
	caps api.Capabilities

	// Entries by id
	entries map[string]*entry

	// Entry creation order (for deterministic iteration)
	order []string

	// Ids in order of successful activation
	active []string

	// Event handlers (protected by mu)
	handlers []EventHandler

	policy         DuplicatePolicy
	revokeOnUnload bool
	logger         hclog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(logger hclog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.Named("registry")
		}
	}
}

// WithDuplicatePolicy sets how loads of a held id are treated.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithRevokeOnUnload makes the registry call api.Revoker.Revoke for a plugin
// after it is unloaded or fails activation, if the surface supports it.
func WithRevokeOnUnload(enabled bool) Option {
	return func(r *Registry) {
		r.revokeOnUnload = enabled
	}
}

// NewRegistry creates a registry bound to the given capability surface.
func NewRegistry(caps api.Capabilities, opts ...Option) *Registry {
	r := &Registry{
		caps:    caps,
		entries: make(map[string]*entry),
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capabilities returns the surface passed to plugins.
func (r *Registry) Capabilities() api.Capabilities {
	return r.caps
}

// Load activates a plugin.
//
// A load whose id is held by a loading, active, or unloading entry fails with
// ErrDuplicateID and changes nothing (unless DuplicateReplace applies). A
// failed activate hook leaves the entry in StateFailedActivation and returns
// an *ActivationError. A previously failed entry is replaced by a fresh one
// after an EventRemoved for it.
func (r *Registry) Load(ctx context.Context, d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("plugin %q: %w", d.ID, err)
	}

	desc := *d
	id := desc.ID
	log := r.logger.With("plugin", id)

	r.mu.Lock()
	if existing, ok := r.entries[id]; ok && existing.state.HoldsID() {
		state := existing.state
		r.mu.Unlock()

		if state == StateActive && r.policy == DuplicateReplace {
			log.Debug("replacing active plugin", "version", desc.Version)
			if err := r.Unload(ctx, id); err != nil && !errors.Is(err, ErrDeactivationFailed) {
				return err
			}
			return r.Load(ctx, d)
		}

		log.Warn("duplicate plugin id rejected", "state", state.String())
		r.emit(Event{Type: EventDuplicateRejected, Plugin: id})
		return fmt.Errorf("plugin %q (%s): %w", id, state, ErrDuplicateID)
	}

	e := &entry{
		descriptor: desc,
		state:      StateLoading,
		loadID:     uuid.New().String(),
		loadedAt:   time.Now(),
	}
	var replacedLoadID string
	if old, replaced := r.entries[id]; replaced {
		replacedLoadID = old.loadID
		r.removeFromOrder(id)
	}
	r.entries[id] = e
	r.order = append(r.order, id)
	r.mu.Unlock()

	if replacedLoadID != "" {
		log.Debug("replacing failed plugin entry", "load_id", replacedLoadID)
		r.emit(Event{Type: EventRemoved, Plugin: id, LoadID: replacedLoadID})
	}
	log.Debug("loading plugin", "version", desc.Version, "load_id", e.loadID)
	r.emit(Event{Type: EventLoading, Plugin: id, LoadID: e.loadID})

	err := safeCall(func() error {
		return desc.Activate(ctx, r.caps)
	})

	r.mu.Lock()
	if err != nil {
		r.transition(e, StateFailedActivation)
		e.err = err
	} else {
		r.transition(e, StateActive)
		e.activatedAt = time.Now()
		r.active = append(r.active, id)
	}
	r.mu.Unlock()

	if err != nil {
		log.Error("plugin activation failed", "error", err)
		r.revoke(id)
		r.emit(Event{Type: EventActivationFailed, Plugin: id, LoadID: e.loadID, Error: err})
		return &ActivationError{ID: id, Cause: err}
	}

	log.Info("plugin activated", "version", desc.Version)
	r.emit(Event{Type: EventActivated, Plugin: id, LoadID: e.loadID})
	return nil
}

// LoadAll loads each descriptor in order and returns the joined failures.
func (r *Registry) LoadAll(ctx context.Context, descriptors []*Descriptor) error {
	var loadErrors []error
	for _, d := range descriptors {
		if err := r.Load(ctx, d); err != nil {
			loadErrors = append(loadErrors, err)
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d plugins: %w", len(loadErrors), errors.Join(loadErrors...))
	}
	return nil
}

// Unload deactivates an active plugin and removes its entry.
//
// Returns ErrNotFound for an unknown id and a *StateError for an entry that
// is not active. The entry is always removed once deactivation starts: a
// failing deactivate hook is reported as a *DeactivationError but the id is
// free for reuse when Unload returns.
func (r *Registry) Unload(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, ErrNotFound)
	}
	if e.state != StateActive {
		state := e.state
		r.mu.Unlock()
		return &StateError{ID: id, Op: "unload", State: state}
	}
	r.transition(e, StateUnloading)
	r.removeFromActive(id)
	desc := e.descriptor
	loadID := e.loadID
	r.mu.Unlock()

	log := r.logger.With("plugin", id)
	r.emit(Event{Type: EventUnloading, Plugin: id, LoadID: loadID})

	var hookErr error
	if desc.Deactivate != nil {
		hookErr = safeCall(func() error {
			return desc.Deactivate(ctx)
		})
	}
	r.revoke(id)

	r.mu.Lock()
	r.transition(e, StateUnloaded)
	if r.entries[id] == e {
		delete(r.entries, id)
		r.removeFromOrder(id)
	}
	r.mu.Unlock()

	log.Info("plugin unloaded")
	r.emit(Event{Type: EventUnloaded, Plugin: id, LoadID: loadID})

	if hookErr != nil {
		log.Warn("plugin deactivation failed", "error", hookErr)
		r.emit(Event{Type: EventDeactivationFailed, Plugin: id, LoadID: loadID, Error: hookErr})
		return &DeactivationError{ID: id, Cause: hookErr}
	}
	return nil
}

// UnloadAll unloads every active plugin in reverse activation order.
func (r *Registry) UnloadAll(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]string, len(r.active))
	for i, id := range r.active {
		ids[len(r.active)-1-i] = id
	}
	r.mu.RUnlock()

	var unloadErrors []error
	for _, id := range ids {
		if err := r.Unload(ctx, id); err != nil {
			unloadErrors = append(unloadErrors, err)
		}
	}

	if len(unloadErrors) > 0 {
		return fmt.Errorf("failed to unload %d plugins: %w", len(unloadErrors), errors.Join(unloadErrors...))
	}
	return nil
}

// Remove deletes an entry that failed activation. Deactivate is not called.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, ErrNotFound)
	}
	if e.state != StateFailedActivation {
		state := e.state
		r.mu.Unlock()
		return &StateError{ID: id, Op: "remove", State: state}
	}
	delete(r.entries, id)
	r.removeFromOrder(id)
	loadID := e.loadID
	r.mu.Unlock()

	r.logger.Debug("removed failed plugin", "plugin", id)
	r.emit(Event{Type: EventRemoved, Plugin: id, LoadID: loadID})
	return nil
}

// Query returns a snapshot of the entry for id.
func (r *Registry) Query(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// ListActive returns the ids of active plugins in activation order.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.active))
	copy(ids, r.active)
	return ids
}

// List returns snapshots of all entries in creation order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			result = append(result, e.snapshot())
		}
	}
	return result
}

// ListByState returns snapshots of entries in a specific state.
func (r *Registry) ListByState(state State) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0)
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok && e.state == state {
			result = append(result, e.snapshot())
		}
	}
	return result
}

// Count returns the number of entries in any state.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Errors returns the activation errors of failed entries by id.
func (r *Registry) Errors() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := make(map[string]error)
	for id, e := range r.entries {
		if e.state == StateFailedActivation && e.err != nil {
			errs[id] = e.err
		}
	}
	return errs
}

// transition moves e to next. Must be called with mu held.
func (r *Registry) transition(e *entry, next State) {
	if !e.state.canTransition(next) {
		r.logger.Error("illegal state transition", "plugin", e.descriptor.ID,
			"from", e.state.String(), "to", next.String())
	}
	e.state = next
}

// revoke removes registrations made by id when configured and supported.
func (r *Registry) revoke(id string) {
	if !r.revokeOnUnload {
		return
	}
	revoker, ok := r.caps.(api.Revoker)
	if !ok {
		return
	}
	if n := revoker.Revoke(id); n > 0 {
		r.logger.Debug("revoked plugin registrations", "plugin", id, "count", n)
	}
}

// removeFromOrder removes id from the creation order.
// Must be called with mu held.
func (r *Registry) removeFromOrder(id string) {
	r.order = removeID(r.order, id)
}

// removeFromActive removes id from the activation order.
// Must be called with mu held.
func (r *Registry) removeFromActive(id string) {
	r.active = removeID(r.active, id)
}

func removeID(ids []string, id string) []string {
	for i, n := range ids {
		if n == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
