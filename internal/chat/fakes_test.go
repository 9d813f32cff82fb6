package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"project-chat/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	mu     sync.Mutex
	events []models.Event
	closed bool
	limit  int
}

func (r *recordSink) Deliver(event models.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || (r.limit > 0 && len(r.events) >= r.limit) {
		return false
	}
	r.events = append(r.events, event)
	return true
}

func (r *recordSink) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordSink) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recordSink) named(name models.EventName) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// received returns the ids of receiveMessage events in delivery order.
func (r *recordSink) received() []string {
	var ids []string
	for _, e := range r.named(models.EventReceiveMessage) {
		ids = append(ids, e.Data.(*models.Message).ID)
	}
	return ids
}

type fakeAccess struct {
	mu      sync.Mutex
	allowed map[string]map[string]bool
	err     error
	hook    func()
	calls   int
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{allowed: make(map[string]map[string]bool)}
}

func (f *fakeAccess) allow(projectID string, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.allowed[projectID] == nil {
		f.allowed[projectID] = make(map[string]bool)
	}
	for _, id := range userIDs {
		f.allowed[projectID][id] = true
	}
}

func (f *fakeAccess) revoke(projectID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.allowed[projectID], userID)
}

func (f *fakeAccess) CanAccessProject(_ context.Context, projectID, userID string) (bool, error) {
	f.mu.Lock()
	f.calls++
	hook, err := f.hook, f.err
	ok := f.allowed[projectID][userID]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

type fakeStore struct {
	mu        sync.Mutex
	names     map[string]string
	messages  []*models.Message
	saveErr   error
	loadErr   error
	loadHook  func()
	lastLimit int
	clock     time.Time
}

func newFakeStore(users ...*models.User) *fakeStore {
	s := &fakeStore{names: make(map[string]string), clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	for _, u := range users {
		s.names[u.ID] = u.FullName
	}
	return s
}

func (s *fakeStore) SaveMessage(_ context.Context, projectID, senderID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.clock = s.clock.Add(time.Second)
	msg := &models.Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Sender:    models.Sender{ID: senderID, FullName: s.names[senderID]},
		Content:   content,
		CreatedAt: s.clock,
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *fakeStore) LoadRecentMessages(_ context.Context, projectID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	hook := s.loadHook
	s.lastLimit = limit
	if s.loadErr != nil {
		s.mu.Unlock()
		return nil, s.loadErr
	}
	var matching []*models.Message
	for _, m := range s.messages {
		if m.ProjectID == projectID {
			matching = append(matching, m)
		}
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if len(matching) > limit {
		matching = matching[len(matching)-limit:]
	}
	return matching, nil
}

func (s *fakeStore) ids(projectID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, m := range s.messages {
		if m.ProjectID == projectID {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

var (
	projectP1 = "3f2b8c1e-5d4a-4e6b-9c7d-1a2b3c4d5e6f"
	projectP2 = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"

	userM1 = &models.User{ID: "m1", FullName: "Maria Manager", Role: models.RoleManager}
	userU1 = &models.User{ID: "u1", FullName: "Uma Member"}
	userU2 = &models.User{ID: "u2", FullName: "Otto Outsider"}
)

type testEnv struct {
	manager *Manager
	access  *fakeAccess
	store   *fakeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	access := newFakeAccess()
	access.allow(projectP1, userM1.ID, userU1.ID)
	store := newFakeStore(userM1, userU1, userU2)

	return &testEnv{
		manager: NewManager(NewHub(), access, store, Options{}),
		access:  access,
		store:   store,
	}
}

func (e *testEnv) connect(t *testing.T, user *models.User) (*Session, *recordSink) {
	t.Helper()

	sink := &recordSink{}
	s := NewSession(sink)
	require.NoError(t, s.Authenticate(user))
	require.NoError(t, e.manager.Connect(s))
	return s, sink
}

func (e *testEnv) join(t *testing.T, user *models.User, projectID string) (*Session, *recordSink) {
	t.Helper()

	s, sink := e.connect(t, user)
	require.NoError(t, e.manager.Join(context.Background(), s, projectID))
	sink.reset()
	return s, sink
}
