package chat

import (
	"sync"

	"project-chat/internal/models"

	"github.com/google/uuid"
)

// Sink is the outbound side of a transport connection. Deliver must not
// block; it returns false when the event could not be queued. Close must be
// idempotent and is used to drop slow or shut-down connections.
type Sink interface {
	Deliver(event models.Event) bool
	Close()
}

// Session is the server-side state of one live connection.
type Session struct {
	ID   string
	sink Sink

	mu   sync.RWMutex
	user *models.User
}

func NewSession(sink Sink) *Session {
	return &Session{
		ID:   uuid.NewString(),
		sink: sink,
	}
}

// Authenticate attaches the resolved identity. It succeeds once per session;
// a new identity requires a new connection.
func (s *Session) Authenticate(user *models.User) error {
	if user == nil {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user != nil {
		return ErrAlreadyAuthenticated
	}
	s.user = user
	return nil
}

// User returns the authenticated identity, or nil before Authenticate.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) userID() string {
	if u := s.User(); u != nil {
		return u.ID
	}
	return ""
}

func (s *Session) emit(name models.EventName, data interface{}) bool {
	return s.sink.Deliver(models.Event{Name: name, Data: data})
}
