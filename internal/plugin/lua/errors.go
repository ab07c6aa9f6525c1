package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call exceeds the execution timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNoActivate is returned when a plugin script does not define activate.
	ErrNoActivate = errors.New("script does not define a global activate function")
)

// ScriptError is an error raised by Lua code or by the Lua compiler.
type ScriptError struct {
	// Message is the Lua error value, usually prefixed with chunk and line.
	Message string

	// Traceback is the Lua stack traceback, if one was captured.
	Traceback string

	Err error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("lua: %s", e.Message)
}

// Unwrap returns the underlying gopher-lua error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
