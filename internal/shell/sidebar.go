package shell

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/birch/internal/plugin/api"
)

// ErrViewExists is returned when a sidebar view id is already registered.
var ErrViewExists = errors.New("sidebar view already registered")

// SidebarHost holds the sidebar views in registration order.
type SidebarHost struct {
	mu    sync.RWMutex
	views []api.SidebarView
}

// NewSidebarHost creates an empty sidebar host.
func NewSidebarHost() *SidebarHost {
	return &SidebarHost{}
}

// Register appends a view.
func (h *SidebarHost) Register(view api.SidebarView) error {
	if err := view.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range h.views {
		if v.ID == view.ID {
			return fmt.Errorf("%w: %q (owned by %s)", ErrViewExists, view.ID, v.Owner)
		}
	}
	h.views = append(h.views, view)
	return nil
}

// Get returns a view by id.
func (h *SidebarHost) Get(id string) (api.SidebarView, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, v := range h.views {
		if v.ID == id {
			return v, true
		}
	}
	return api.SidebarView{}, false
}

// Views returns the registered views in registration order.
func (h *SidebarHost) Views() []api.SidebarView {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]api.SidebarView, len(h.views))
	copy(result, h.views)
	return result
}

// RevokeOwner removes all views registered by owner.
func (h *SidebarHost) RevokeOwner(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.views[:0]
	for _, v := range h.views {
		if v.Owner != owner {
			kept = append(kept, v)
		}
	}
	removed := len(h.views) - len(kept)
	h.views = kept
	return removed
}
