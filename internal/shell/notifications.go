package shell

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/birch/internal/plugin/api"
)

// PostedNotification is a notification held by the sink.
type PostedNotification struct {
	api.Notification
	ID       string
	PostedAt time.Time
}

// NotificationSink collects notifications until the user dismisses them.
type NotificationSink struct {
	mu      sync.Mutex
	pending []PostedNotification
	forward func(PostedNotification)
	now     func() time.Time
}

// NewNotificationSink creates an empty sink. If forward is non-nil it is
// called for every posted notification, outside the sink lock.
func NewNotificationSink(forward func(PostedNotification)) *NotificationSink {
	return &NotificationSink{
		forward: forward,
		now:     time.Now,
	}
}

// Post validates and queues a notification and returns its id.
func (s *NotificationSink) Post(n api.Notification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	if n.Level == "" {
		n.Level = api.NotificationInfo
	}

	posted := PostedNotification{
		Notification: n,
		ID:           uuid.New().String(),
		PostedAt:     s.now(),
	}

	s.mu.Lock()
	s.pending = append(s.pending, posted)
	forward := s.forward
	s.mu.Unlock()

	if forward != nil {
		forward(posted)
	}
	return posted.ID, nil
}

// Dismiss removes a pending notification.
func (s *NotificationSink) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.pending {
		if n.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// DismissAll removes every pending notification.
func (s *NotificationSink) DismissAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	s.pending = nil
	return n
}

// Pending returns the undismissed notifications, oldest first.
func (s *NotificationSink) Pending() []PostedNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]PostedNotification, len(s.pending))
	copy(result, s.pending)
	return result
}

// RevokeOwner dismisses all pending notifications posted by owner.
func (s *NotificationSink) RevokeOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pending[:0]
	for _, n := range s.pending {
		if n.Owner != owner {
			kept = append(kept, n)
		}
	}
	removed := len(s.pending) - len(kept)
	s.pending = kept
	return removed
}
