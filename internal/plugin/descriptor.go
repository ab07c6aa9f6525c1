package plugin

import (
	"context"
	"fmt"

	"github.com/dshills/birch/internal/plugin/api"
)

// ActivateFunc is a plugin's activation entry point.
type ActivateFunc func(ctx context.Context, caps api.Capabilities) error

// DeactivateFunc is a plugin's optional deactivation entry point.
type DeactivateFunc func(ctx context.Context) error

// Descriptor is the static metadata and behavior supplied by a plugin author.
type Descriptor struct {
	// ID is the unique, stable key of the plugin within a registry.
	ID string

	// Display metadata. Version is expected to be semver but is not parsed.
	Name        string
	Version     string
	Description string

	// Source describes where the descriptor came from (e.g. a plugin directory).
	Source string

	// Activate is invoked once per successful load.
	Activate ActivateFunc

	// Deactivate is invoked once per unload of an active entry. May be nil.
	Deactivate DeactivateFunc
}

// Validate checks the descriptor's preconditions for loading.
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: descriptor is nil", ErrInvalidDescriptor)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDescriptor)
	}
	if d.Activate == nil {
		return fmt.Errorf("%w: %q has no activate hook", ErrInvalidDescriptor, d.ID)
	}
	return nil
}

// DisplayName returns the name, falling back to the id.
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// String returns a string representation of the descriptor.
func (d *Descriptor) String() string {
	version := d.Version
	if version == "" {
		version = "0.0.0"
	}
	return fmt.Sprintf("%s v%s", d.DisplayName(), version)
}
