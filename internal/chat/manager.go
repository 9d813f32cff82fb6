package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"project-chat/internal/database"
	"project-chat/internal/models"
	"project-chat/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit    = 50
	DefaultMaxMessageBytes = 8192
)

// AccessChecker is the manager-or-team-member predicate.
type AccessChecker interface {
	CanAccessProject(ctx context.Context, projectID, userID string) (bool, error)
}

type Options struct {
	HistoryLimit    int
	MaxMessageBytes int
	// TypingTTL expires typing entries that were not refreshed in time.
	// Zero leaves them until stopTyping, a sent message or disconnect.
	TypingTTL time.Duration
}

// Manager runs the channel operations of every connected session against a
// shared Hub.
type Manager struct {
	hub    *Hub
	access AccessChecker
	store  database.MessageRepository
	opts   Options
	now    func() time.Time
}

func NewManager(hub *Hub, access AccessChecker, store database.MessageRepository, opts Options) *Manager {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return &Manager{
		hub:    hub,
		access: access,
		store:  store,
		opts:   opts,
		now:    time.Now,
	}
}

func (m *Manager) Hub() *Hub {
	return m.hub
}

// CanonicalProjectID returns the lower-case hyphenated form of a 36
// character UUID. Room names, room locks and typing entries are keyed by
// it, so every spelling of one project shares a room.
func CanonicalProjectID(id string) (string, bool) {
	if len(id) != 36 {
		return "", false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// Connect registers an authenticated session so it can join rooms.
func (m *Manager) Connect(s *Session) error {
	user := s.User()
	if user == nil {
		return ErrUnauthenticated
	}
	m.hub.register(s)
	logger.Info("User %s (%s) connected via session %s", user.FullName, user.ID, s.ID)
	return nil
}

// Join adds the session to the project's room and replays recent history to
// it alone. History is read under the same room lock that Send holds while
// persisting and broadcasting, so each message reaches a joiner exactly once.
func (m *Manager) Join(ctx context.Context, s *Session, projectID string) error {
	user := s.User()
	if user == nil {
		s.emit(models.EventChannelError, reasonAuthRequired)
		return ErrUnauthenticated
	}
	projectID, ok := CanonicalProjectID(projectID)
	if !ok {
		s.emit(models.EventChannelError, reasonInvalidID)
		return ErrMalformedID
	}

	allowed, err := m.access.CanAccessProject(ctx, projectID, user.ID)
	if err != nil {
		logger.Error("Error checking access for user %s to project %s: %v", user.ID, projectID, err)
		s.emit(models.EventChannelError, reasonJoinFailed)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !allowed {
		s.emit(models.EventChannelError, reasonChannelAccess)
		return ErrAccessDenied
	}

	unlock := m.hub.lockRoom(projectID)
	defer unlock()

	if !m.hub.add(s, projectID) {
		logger.Debug("Session %s disconnected before joining %s", s.ID, RoomName(projectID))
		return nil
	}

	history, err := m.store.LoadRecentMessages(ctx, projectID, m.opts.HistoryLimit)
	if err != nil {
		m.hub.remove(s, projectID)
		logger.Error("Error loading history for project %s: %v", projectID, err)
		s.emit(models.EventChannelError, reasonJoinFailed)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if history == nil {
		history = []*models.Message{}
	}

	m.deliver([]*Session{s}, models.Event{Name: models.EventMessageHistory, Data: history})
	logger.Info("%s joined room %s", user.FullName, RoomName(projectID))
	return nil
}

// Send validates, re-checks access, persists and broadcasts one message.
// Losing access evicts the sender from the room.
func (m *Manager) Send(ctx context.Context, s *Session, projectID, content string) error {
	user := s.User()
	if user == nil {
		s.emit(models.EventMessageError, reasonAuthRequired)
		return ErrUnauthenticated
	}
	projectID, ok := CanonicalProjectID(projectID)
	if !ok {
		s.emit(models.EventMessageError, reasonInvalidID)
		return ErrMalformedID
	}

	content = strings.TrimSpace(content)
	if content == "" {
		s.emit(models.EventMessageError, reasonContentMissing)
		return ErrEmptyMessage
	}
	if len(content) > m.opts.MaxMessageBytes {
		s.emit(models.EventMessageError, reasonContentTooLong)
		return ErrMessageTooLong
	}
	// Postgres text cannot hold NUL.
	if strings.ContainsRune(content, 0) {
		s.emit(models.EventMessageError, reasonContentInvalid)
		return ErrInvalidContent
	}

	allowed, err := m.access.CanAccessProject(ctx, projectID, user.ID)
	if err != nil {
		logger.Error("Error checking access for user %s to project %s: %v", user.ID, projectID, err)
		s.emit(models.EventMessageError, reasonSendFailed)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !allowed {
		s.emit(models.EventMessageError, reasonSendAccess)
		if m.hub.remove(s, projectID) {
			logger.Warn("Evicted %s from %s after access was revoked", user.ID, RoomName(projectID))
		}
		return ErrAccessDenied
	}

	if err := m.persistAndBroadcast(ctx, projectID, user.ID, content); err != nil {
		logger.Error("Error sending message from %s to project %s: %v", user.ID, projectID, err)
		s.emit(models.EventMessageError, reasonSendFailed)
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if m.hub.clearTyping(projectID, user.ID) {
		m.relayStopTyping(projectID, user.ID, s)
	}
	return nil
}

func (m *Manager) persistAndBroadcast(ctx context.Context, projectID, senderID, content string) error {
	unlock := m.hub.lockRoom(projectID)
	defer unlock()

	msg, err := m.store.SaveMessage(ctx, projectID, senderID, content)
	if err != nil {
		return err
	}

	m.deliver(m.hub.members(projectID), models.Event{Name: models.EventReceiveMessage, Data: msg})
	logger.Debug("Message %s broadcast to %s", msg.ID, RoomName(projectID))
	return nil
}

// Leave removes the session from the room. It is idempotent and needs no
// access check.
func (m *Manager) Leave(s *Session, projectID string) {
	projectID, ok := CanonicalProjectID(projectID)
	if !ok {
		return
	}
	if m.hub.remove(s, projectID) {
		logger.Info("Session %s left room %s", s.ID, RoomName(projectID))
	}
}

// Disconnect drops the session from every room and clears its user's typing
// entries, telling remaining peers the user stopped typing.
func (m *Manager) Disconnect(s *Session) {
	projects := m.hub.unregister(s)

	user := s.User()
	if user == nil {
		return
	}
	for _, projectID := range m.hub.clearUserTyping(user.ID) {
		m.relayStopTyping(projectID, user.ID, s)
	}
	logger.Info("User %s disconnected from session %s (%d rooms)", user.ID, s.ID, len(projects))
}

// Shutdown closes every connected session's transport.
func (m *Manager) Shutdown() {
	sessions := m.hub.allSessions()
	for _, s := range sessions {
		s.sink.Close()
	}
	logger.Info("Closed %d chat sessions", len(sessions))
}

func (m *Manager) deliver(targets []*Session, event models.Event) {
	for _, target := range targets {
		if !target.sink.Deliver(event) {
			logger.Warn("Dropping session %s: outbound buffer full", target.ID)
			target.sink.Close()
		}
	}
}
