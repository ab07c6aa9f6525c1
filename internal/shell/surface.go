package shell

import "github.com/dshills/birch/internal/plugin/api"

// Surface is the capability surface handed to plugins. It routes each
// registration to the provider that backs it.
type Surface struct {
	Commands      *CommandTable
	Languages     *LanguageTable
	Notifications *NotificationSink
	Sidebar       *SidebarHost
}

// NewSurface creates a surface over fresh providers.
func NewSurface(forward func(PostedNotification)) *Surface {
	return &Surface{
		Commands:      NewCommandTable(),
		Languages:     NewLanguageTable(),
		Notifications: NewNotificationSink(forward),
		Sidebar:       NewSidebarHost(),
	}
}

var (
	_ api.Capabilities = (*Surface)(nil)
	_ api.Revoker      = (*Surface)(nil)
)

// APIVersion implements api.Capabilities.
func (s *Surface) APIVersion() int { return api.Version }

// Editor implements api.Capabilities.
func (s *Surface) Editor() api.Editor { return surfaceEditor{s} }

// UI implements api.Capabilities.
func (s *Surface) UI() api.UI { return surfaceUI{s} }

// Revoke removes every registration attributed to owner.
func (s *Surface) Revoke(owner string) int {
	return s.Commands.RevokeOwner(owner) +
		s.Languages.RevokeOwner(owner) +
		s.Notifications.RevokeOwner(owner) +
		s.Sidebar.RevokeOwner(owner)
}

type surfaceEditor struct{ s *Surface }

func (e surfaceEditor) AddCommand(cmd api.Command) error {
	return e.s.Commands.Add(cmd)
}

func (e surfaceEditor) RegisterLanguage(lang api.Language) error {
	return e.s.Languages.Register(lang)
}

type surfaceUI struct{ s *Surface }

func (u surfaceUI) ShowNotification(n api.Notification) error {
	_, err := u.s.Notifications.Post(n)
	return err
}

func (u surfaceUI) RegisterSidebarView(view api.SidebarView) error {
	return u.s.Sidebar.Register(view)
}
