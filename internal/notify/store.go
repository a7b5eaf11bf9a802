package notify

import (
	"sync"
	"time"

	"admin-realtime-service/internal/domain/notification"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Store is the process-wide ordered list of user-visible notices.
// Insertion order is display order. All mutations go through Add, Remove,
// MarkRead and Clear.
type Store struct {
	mu            sync.Mutex
	notifications []notification.Notification
	timers        map[string]*time.Timer
	listeners     []func()
	logger        *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		timers: make(map[string]*time.Timer),
		logger: logger,
	}
}

// Add assigns a fresh id and creation time, appends the notice and returns the
// id. A positive DurationMs schedules an automatic removal after that delay.
func (s *Store) Add(input notification.Input) string {
	n := notification.Notification{
		ID:         ulid.Make().String(),
		Type:       input.Type,
		Title:      input.Title,
		Message:    input.Message,
		DurationMs: input.DurationMs,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	if input.DurationMs > 0 {
		d := time.Duration(input.DurationMs) * time.Millisecond
		s.timers[n.ID] = time.AfterFunc(d, func() {
			s.Remove(n.ID)
		})
	}
	s.mu.Unlock()

	s.logger.Debug("notification added",
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
		zap.String("title", n.Title),
	)

	s.notifyListeners()
	return n.ID
}

// Remove deletes the entry with a matching id. Removing an absent id is a
// no-op, which also makes expiry timers racing a manual removal harmless.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	removed := false
	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			removed = true
			break
		}
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if removed {
		s.notifyListeners()
	}
}

// MarkRead stamps the notice with a read time if it is still present.
func (s *Store) MarkRead(id string) {
	now := time.Now()

	s.mu.Lock()
	marked := false
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].ReadAt == nil {
			s.notifications[i].ReadAt = &now
			marked = true
			break
		}
	}
	s.mu.Unlock()

	if marked {
		s.notifyListeners()
	}
}

// Clear empties the list unconditionally and drops all pending expiry timers.
func (s *Store) Clear() {
	s.mu.Lock()
	s.notifications = nil
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.notifyListeners()
}

// List returns a snapshot of the current notifications in display order.
func (s *Store) List() []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Len returns the number of notifications currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

// OnChange registers a callback invoked after every mutation. Callbacks run
// outside the store lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notifyListeners() {
	s.mu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
