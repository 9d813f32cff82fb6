package chat

import (
	"sync"
	"time"
)

const roomPrefix = "project_"

// RoomName is the broadcast address of a project's channel.
func RoomName(projectID string) string {
	return roomPrefix + projectID
}

type typingKey struct {
	projectID string
	userID    string
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// Hub owns all mutable chat state: which sessions are connected, which
// rooms they joined, and who is typing where. Rooms exist only while they
// have members. Methods are short critical sections and never block on I/O.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]map[string]struct{} // session -> joined project ids
	rooms    map[string]map[*Session]struct{} // room name -> sessions
	typing   map[typingKey]time.Time
	locks    map[string]*roomLock
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Session]map[string]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
		typing:   make(map[typingKey]time.Time),
		locks:    make(map[string]*roomLock),
	}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		h.sessions[s] = make(map[string]struct{})
	}
}

// unregister drops the session from every room and returns the project ids
// it had joined.
func (h *Hub) unregister(s *Session) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.sessions[s]
	if !ok {
		return nil
	}
	delete(h.sessions, s)

	projects := make([]string, 0, len(joined))
	for projectID := range joined {
		h.removeFromRoomLocked(s, projectID)
		projects = append(projects, projectID)
	}
	return projects
}

// add puts a connected session into a room. It returns false when the
// session is no longer registered, e.g. it disconnected mid-join.
func (h *Hub) add(s *Session, projectID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.sessions[s]
	if !ok {
		return false
	}
	joined[projectID] = struct{}{}

	name := RoomName(projectID)
	room, ok := h.rooms[name]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[name] = room
	}
	room[s] = struct{}{}
	return true
}

// remove takes a session out of one room; it reports whether it was there.
func (h *Hub) remove(s *Session, projectID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.sessions[s]; ok {
		delete(joined, projectID)
	}
	return h.removeFromRoomLocked(s, projectID)
}

func (h *Hub) removeFromRoomLocked(s *Session, projectID string) bool {
	name := RoomName(projectID)
	room, ok := h.rooms[name]
	if !ok {
		return false
	}
	if _, ok := room[s]; !ok {
		return false
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, name)
	}
	return true
}

// members snapshots a room. Later joins and leaves do not affect the slice.
func (h *Hub) members(projectID string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[RoomName(projectID)]
	members := make([]*Session, 0, len(room))
	for s := range room {
		members = append(members, s)
	}
	return members
}

func (h *Hub) inRoom(s *Session, projectID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[RoomName(projectID)][s]
	return ok
}

func (h *Hub) joined(s *Session) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	projects := make([]string, 0, len(h.sessions[s]))
	for projectID := range h.sessions[s] {
		projects = append(projects, projectID)
	}
	return projects
}

func (h *Hub) allSessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (h *Hub) setTyping(projectID, userID string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.typing[typingKey{projectID: projectID, userID: userID}] = at
}

func (h *Hub) clearTyping(projectID, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := typingKey{projectID: projectID, userID: userID}
	if _, ok := h.typing[key]; !ok {
		return false
	}
	delete(h.typing, key)
	return true
}

func (h *Hub) isTyping(projectID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.typing[typingKey{projectID: projectID, userID: userID}]
	return ok
}

// clearUserTyping removes every entry of userID and returns the affected
// project ids.
func (h *Hub) clearUserTyping(userID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var projects []string
	for key := range h.typing {
		if key.userID == userID {
			delete(h.typing, key)
			projects = append(projects, key.projectID)
		}
	}
	return projects
}

// expireTyping removes entries last refreshed before cutoff.
func (h *Hub) expireTyping(cutoff time.Time) []typingKey {
	h.mu.Lock()
	defer h.mu.Unlock()

	var expired []typingKey
	for key, at := range h.typing {
		if at.Before(cutoff) {
			delete(h.typing, key)
			expired = append(expired, key)
		}
	}
	return expired
}

// lockRoom serialises persist-and-broadcast (and join's history read) per
// project. The returned func releases the lock.
func (h *Hub) lockRoom(projectID string) func() {
	h.mu.Lock()
	l, ok := h.locks[projectID]
	if !ok {
		l = &roomLock{}
		h.locks[projectID] = l
	}
	l.refs++
	h.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		h.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(h.locks, projectID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) roomSessionCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomName(projectID)])
}
