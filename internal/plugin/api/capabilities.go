package api

import "errors"

// Version is the version of the capability surface method set.
const Version = 1

// Capability surface errors.
var (
	// ErrUnattributed is returned when a record has no owning plugin id.
	ErrUnattributed = errors.New("registration has no owner")

	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("invalid registration")
)

// Capabilities is the host-provided surface passed to every plugin activation.
type Capabilities interface {
	// APIVersion returns the surface version implemented by the host.
	APIVersion() int

	// Editor returns the editor capabilities.
	Editor() Editor

	// UI returns the user interface capabilities.
	UI() UI
}

// Editor exposes the editor command table and language registry.
type Editor interface {
	// AddCommand adds a command to the command table.
	AddCommand(cmd Command) error

	// RegisterLanguage registers a language definition.
	RegisterLanguage(lang Language) error
}

// UI exposes the notification sink and the sidebar view host.
type UI interface {
	// ShowNotification posts a notification to the user.
	ShowNotification(n Notification) error

	// RegisterSidebarView adds a view to the sidebar.
	RegisterSidebarView(view SidebarView) error
}

// Revoker is implemented by surfaces that can remove every registration
// made by a single owner.
type Revoker interface {
	// Revoke removes all registrations attributed to owner and returns
	// the number removed.
	Revoke(owner string) int
}
