package api

import "fmt"

// Command is an entry in the editor command table.
type Command struct {
	Owner       string
	ID          string
	Title       string
	Description string
	Category    string
	Run         func() error
}

// Validate checks that the command can be registered.
func (c Command) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("command %q: %w", c.ID, ErrUnattributed)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: command id is required", ErrInvalidRecord)
	}
	if c.Run == nil {
		return fmt.Errorf("%w: command %q has no handler", ErrInvalidRecord, c.ID)
	}
	return nil
}

// Label returns the title, falling back to the id.
func (c Command) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

// Language describes a language contributed by a plugin.
type Language struct {
	Owner      string
	ID         string
	Name       string
	Extensions []string // including the leading dot, e.g. ".go"
	Aliases    []string
}

// Validate checks that the language can be registered.
func (l Language) Validate() error {
	if l.Owner == "" {
		return fmt.Errorf("language %q: %w", l.ID, ErrUnattributed)
	}
	if l.ID == "" {
		return fmt.Errorf("%w: language id is required", ErrInvalidRecord)
	}
	return nil
}

// NotificationLevel represents the severity of a notification.
type NotificationLevel string

const (
	// NotificationInfo is an informational notification.
	NotificationInfo NotificationLevel = "info"
	// NotificationWarning is a warning notification.
	NotificationWarning NotificationLevel = "warning"
	// NotificationError is an error notification.
	NotificationError NotificationLevel = "error"
)

// ParseNotificationLevel maps a level name to a NotificationLevel.
// Unknown names map to NotificationInfo.
func ParseNotificationLevel(s string) NotificationLevel {
	switch s {
	case "warn", "warning":
		return NotificationWarning
	case "error":
		return NotificationError
	default:
		return NotificationInfo
	}
}

// Notification is a user-visible message.
type Notification struct {
	Owner   string
	Message string
	Level   NotificationLevel
}

// Validate checks that the notification can be shown.
func (n Notification) Validate() error {
	if n.Owner == "" {
		return fmt.Errorf("notification: %w", ErrUnattributed)
	}
	if n.Message == "" {
		return fmt.Errorf("%w: notification message is empty", ErrInvalidRecord)
	}
	return nil
}

// SidebarView is a view contributed to the sidebar.
// Content is opaque to the registry and is interpreted by the view host.
type SidebarView struct {
	Owner   string
	ID      string
	Title   string
	Content any
}

// Validate checks that the view can be registered.
func (v SidebarView) Validate() error {
	if v.Owner == "" {
		return fmt.Errorf("sidebar view %q: %w", v.ID, ErrUnattributed)
	}
	if v.ID == "" {
		return fmt.Errorf("%w: sidebar view id is required", ErrInvalidRecord)
	}
	return nil
}
