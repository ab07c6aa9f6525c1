// Package plugin provides the plugin registry for Birch.
//
// The registry owns the set of installed plugins and mediates their
// activation and deactivation against a single capability surface supplied
// by the host shell. Plugin code runs inside an error boundary: a failing or
// panicking hook is converted into an error result and never unwinds through
// the registry or affects other plugins' entries.
//
// # Quick Start
//
//	caps := shell.NewSurface(logger)
//	reg := plugin.NewRegistry(caps, plugin.WithLogger(logger))
//
//	err := reg.Load(ctx, &plugin.Descriptor{
//	    ID:      "word-count",
//	    Name:    "Word Count",
//	    Version: "1.0.0",
//	    Activate: func(ctx context.Context, caps api.Capabilities) error {
//	        caps = api.Bind(caps, "word-count")
//	        return caps.Editor().AddCommand(api.Command{ID: "word-count.show", Run: show})
//	    },
//	})
//	var actErr *plugin.ActivationError
//	if errors.As(err, &actErr) {
//	    // entry is kept in StateFailedActivation for diagnostics
//	}
//
// # Plugin Lifecycle
//
// Entries go through these states:
//
//	(none) -> Load() -> StateLoading
//	StateLoading -> activate ok -> StateActive
//	StateLoading -> activate fails -> StateFailedActivation
//	StateActive -> Unload() -> StateUnloading -> StateUnloaded -> (none)
//	StateFailedActivation -> Remove() -> (none)
//
// At most one entry exists per id. A load for an id held by a loading,
// active, or unloading entry fails with ErrDuplicateID. A failed entry is
// replaced by the next load of its id.
//
// # Errors
//
//   - ErrInvalidDescriptor: empty id or missing activate hook
//   - ErrDuplicateID: load rejected, nothing changed
//   - *ActivationError (ErrActivationFailed): entry kept as failed
//   - ErrNotFound, *StateError (ErrInvalidState): unload or remove misuse
//   - *DeactivationError (ErrDeactivationFailed): entry removed anyway
//
// Registrations a plugin made before its activation failed are not rolled
// back unless the registry is built with WithRevokeOnUnload and the surface
// implements api.Revoker.
package plugin
