package chat

import (
	"context"
	"time"

	"project-chat/internal/models"
	"project-chat/pkg/logger"
)

// MarkTyping records that the session's user is composing in projectID and
// tells the other sessions in the room. Typing is low-stakes: there is no
// access check and failures are silent.
func (m *Manager) MarkTyping(s *Session, projectID string) error {
	user := s.User()
	if user == nil {
		return ErrUnauthenticated
	}
	projectID, ok := CanonicalProjectID(projectID)
	if !ok {
		return ErrMalformedID
	}

	m.hub.setTyping(projectID, user.ID, m.now())
	m.relay(projectID, s, models.Event{
		Name: models.EventUserTyping,
		Data: models.UserTypingPayload{UserID: user.ID, DisplayName: user.FullName, ProjectID: projectID},
	})
	return nil
}

// MarkStopped clears the entry and tells the other sessions in the room.
func (m *Manager) MarkStopped(s *Session, projectID string) error {
	user := s.User()
	if user == nil {
		return ErrUnauthenticated
	}
	projectID, ok := CanonicalProjectID(projectID)
	if !ok {
		return ErrMalformedID
	}

	m.hub.clearTyping(projectID, user.ID)
	m.relayStopTyping(projectID, user.ID, s)
	return nil
}

func (m *Manager) relayStopTyping(projectID, userID string, origin *Session) {
	m.relay(projectID, origin, models.Event{
		Name: models.EventUserStopTyping,
		Data: models.UserStopTypingPayload{UserID: userID, ProjectID: projectID},
	})
}

// relay sends event to every session in the room except origin.
func (m *Manager) relay(projectID string, origin *Session, event models.Event) {
	members := m.hub.members(projectID)
	targets := members[:0]
	for _, member := range members {
		if member != origin {
			targets = append(targets, member)
		}
	}
	m.deliver(targets, event)
}

// RunTypingSweeper expires stale typing entries until ctx is done. It
// returns immediately when no TTL is configured.
func (m *Manager) RunTypingSweeper(ctx context.Context) {
	if m.opts.TypingTTL <= 0 {
		return
	}

	ticker := time.NewTicker(m.opts.TypingTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepTyping()
		}
	}
}

func (m *Manager) sweepTyping() int {
	expired := m.hub.expireTyping(m.now().Add(-m.opts.TypingTTL))
	for _, key := range expired {
		event := models.Event{
			Name: models.EventUserStopTyping,
			Data: models.UserStopTypingPayload{UserID: key.userID, ProjectID: key.projectID},
		}
		var targets []*Session
		for _, member := range m.hub.members(key.projectID) {
			if member.userID() != key.userID {
				targets = append(targets, member)
			}
		}
		m.deliver(targets, event)
	}
	if len(expired) > 0 {
		logger.Debug("Expired %d stale typing indicators", len(expired))
	}
	return len(expired)
}
