package plugin

// State represents the lifecycle state of a registry entry.
type State int

// Entry states.
const (
	// StateLoading - Activation has been requested and is in flight.
	StateLoading State = iota

	// StateActive - Activation returned successfully.
	StateActive

	// StateFailedActivation - Activation failed; the entry is kept for diagnostics.
	StateFailedActivation

	// StateUnloading - Deactivation is in flight.
	StateUnloading

	// StateUnloaded - Deactivation finished and the entry is being removed.
	StateUnloaded
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateFailedActivation:
		return "failed-activation"
	case StateUnloading:
		return "unloading"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// InFlight returns true while a lifecycle hook is running for the entry.
func (s State) InFlight() bool {
	return s == StateLoading || s == StateUnloading
}

// HoldsID returns true if an entry in this state blocks a new load of the same id.
func (s State) HoldsID() bool {
	return s == StateLoading || s == StateActive || s == StateUnloading
}

// canTransition reports whether the lifecycle allows moving from s to next.
func (s State) canTransition(next State) bool {
	switch s {
	case StateLoading:
		return next == StateActive || next == StateFailedActivation
	case StateActive:
		return next == StateUnloading
	case StateUnloading:
		return next == StateUnloaded
	default:
		return false
	}
}
