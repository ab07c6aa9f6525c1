package plugin

// EventHandler handles registry lifecycle events.
// Handlers must be non-blocking and run outside the registry lock, so they
// may query the registry. Panics in handlers are recovered.
type EventHandler func(event Event)

// Event represents a registry lifecycle event.
type Event struct {
	Type   EventType
	Plugin string
	LoadID string
	Error  error
}

// EventType is the type of registry event.
type EventType int

const (
	// EventLoading is emitted when an entry is created in the loading state.
	EventLoading EventType = iota
	// EventActivated is emitted when an entry becomes active.
	EventActivated
	// EventActivationFailed is emitted when an activate hook fails.
	EventActivationFailed
	// EventDuplicateRejected is emitted when a load is rejected for a held id.
	EventDuplicateRejected
	// EventUnloading is emitted when deactivation starts.
	EventUnloading
	// EventUnloaded is emitted when an entry has been unloaded and removed.
	EventUnloaded
	// EventDeactivationFailed is emitted when a deactivate hook fails.
	EventDeactivationFailed
	// EventRemoved is emitted when a failed entry is removed, either by
	// Remove or by a new load of the same id.
	EventRemoved
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventLoading:
		return "loading"
	case EventActivated:
		return "activated"
	case EventActivationFailed:
		return "activation-failed"
	case EventDuplicateRejected:
		return "duplicate-rejected"
	case EventUnloading:
		return "unloading"
	case EventUnloaded:
		return "unloaded"
	case EventDeactivationFailed:
		return "deactivation-failed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (r *Registry) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	index := len(r.handlers) - 1
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// Nil the slot so other indices stay valid
		if index < len(r.handlers) {
			r.handlers[index] = nil
		}
	}
}

// emit sends an event to all handlers.
// Must be called without r.mu held.
func (r *Registry) emit(event Event) {
	r.mu.RLock()
	handlers := make([]EventHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("event handler panicked", "event", event.Type.String(), "panic", rec)
				}
			}()
			handler(event)
		}()
	}
}
