package plugin

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Registry errors.
var (
	// ErrInvalidDescriptor is returned when a descriptor has no id or no activate hook.
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")

	// ErrDuplicateID is returned when a load collides with an entry that holds the id.
	ErrDuplicateID = errors.New("plugin id already registered")

	// ErrActivationFailed is returned when a plugin's activate hook fails.
	ErrActivationFailed = errors.New("plugin activation failed")

	// ErrNotFound is returned when no entry exists for an id.
	ErrNotFound = errors.New("plugin not found")

	// ErrInvalidState is returned when an operation is not allowed in the entry's state.
	ErrInvalidState = errors.New("invalid plugin state")

	// ErrDeactivationFailed is returned when a plugin's deactivate hook fails.
	// The entry has still been removed.
	ErrDeactivationFailed = errors.New("plugin deactivation failed")
)

// ActivationError reports a failed activate hook.
type ActivationError struct {
	ID    string
	Cause error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("plugin %q: activation failed: %v", e.ID, e.Cause)
}

// Is matches ErrActivationFailed.
func (e *ActivationError) Is(target error) bool {
	return target == ErrActivationFailed
}

// Unwrap returns the cause.
func (e *ActivationError) Unwrap() error {
	return e.Cause
}

// DeactivationError reports a failed deactivate hook. Unload still removed the entry.
type DeactivationError struct {
	ID    string
	Cause error
}

func (e *DeactivationError) Error() string {
	return fmt.Sprintf("plugin %q: deactivation failed: %v", e.ID, e.Cause)
}

// Is matches ErrDeactivationFailed.
func (e *DeactivationError) Is(target error) bool {
	return target == ErrDeactivationFailed
}

// Unwrap returns the cause.
func (e *DeactivationError) Unwrap() error {
	return e.Cause
}

// StateError reports an operation attempted on an entry in the wrong state.
type StateError struct {
	ID    string
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("plugin %q: cannot %s in state %s", e.ID, e.Op, e.State)
}

// Is matches ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// PanicError wraps a value recovered from a panicking plugin hook.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// safeCall runs fn and converts a panic into a *PanicError.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
