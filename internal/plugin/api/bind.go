package api

// Bind returns a view of caps that stamps owner onto every record.
// A record that already names a different owner is passed through unchanged
// so the provider can decide how to treat it.
func Bind(caps Capabilities, owner string) Capabilities {
	if b, ok := caps.(*bound); ok {
		caps = b.inner
	}
	return &bound{inner: caps, owner: owner}
}

// OwnerOf returns the owner a bound surface stamps, or "" for an unbound one.
func OwnerOf(caps Capabilities) string {
	if b, ok := caps.(*bound); ok {
		return b.owner
	}
	return ""
}

type bound struct {
	inner Capabilities
	owner string
}

func (b *bound) APIVersion() int { return b.inner.APIVersion() }
func (b *bound) Editor() Editor { return boundEditor{b.inner.Editor(), b.owner} }
func (b *bound) UI() UI { return boundUI{b.inner.UI(), b.owner} }

// Revoke forwards to the wrapped surface when it supports revocation.
func (b *bound) Revoke(owner string) int {
	if r, ok := b.inner.(Revoker); ok {
		return r.Revoke(owner)
	}
	return 0
}

type boundEditor struct {
	inner Editor
	owner string
}

func (e boundEditor) AddCommand(cmd Command) error {
	if cmd.Owner == "" {
		cmd.Owner = e.owner
	}
	return e.inner.AddCommand(cmd)
}

func (e boundEditor) RegisterLanguage(lang Language) error {
	if lang.Owner == "" {
		lang.Owner = e.owner
	}
	return e.inner.RegisterLanguage(lang)
}

type boundUI struct {
	inner UI
	owner string
}

func (u boundUI) ShowNotification(n Notification) error {
	if n.Owner == "" {
		n.Owner = u.owner
	}
	return u.inner.ShowNotification(n)
}

func (u boundUI) RegisterSidebarView(view SidebarView) error {
	if view.Owner == "" {
		view.Owner = u.owner
	}
	return u.inner.RegisterSidebarView(view)
}
