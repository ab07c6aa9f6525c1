// Package api defines the capability surface exposed to Birch plugins.
//
// The surface is a fixed set of interfaces. A plugin receives a Capabilities
// value on activation and uses it to contribute to the editor:
//
//   - Editor().AddCommand: add an entry to the command table
//   - Editor().RegisterLanguage: register a language definition
//   - UI().ShowNotification: post a notification to the user
//   - UI().RegisterSidebarView: add a view to the sidebar host
//
// # Attribution
//
// Every record passed through the surface carries an Owner, the id of the
// plugin that made the registration. Providers reject records with an empty
// owner (ErrUnattributed) so that registrations can later be revoked per
// plugin. Plugins normally wrap the surface with Bind, which stamps their id
// onto every record:
//
//	func activate(ctx context.Context, caps api.Capabilities) error {
//	    caps = api.Bind(caps, "word-count")
//	    return caps.Editor().AddCommand(api.Command{
//	        ID:    "word-count.show",
//	        Title: "Show Word Count",
//	        Run:   showWordCount,
//	    })
//	}
//
// Surfaces that can undo registrations implement Revoker.
//
// # Versioning
//
// The shape of these interfaces is versioned by Version. Changing a method
// set is a breaking change for every installed plugin and must bump it.
package api
