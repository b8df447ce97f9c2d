package cart

import (
	"context"
	"sync"
	"time"
)

// Session is everything kept per customer session: the cached table binding
// and the draft. The binding is a cache and is re-validated on every use.
type Session struct {
	TableID   *int64    `json:"tableId,omitempty"`
	Draft     Draft     `json:"draft"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionStore persists sessions by id. Load returns an empty Session for an
// unknown id.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (Session, error)
	Save(ctx context.Context, sessionID string, s Session) error
	Delete(ctx context.Context, sessionID string) error
}

// MemorySessionStore keeps sessions in process with the same idle expiry as
// the Redis store.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry)}
}

func (m *MemorySessionStore) Load(_ context.Context, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, nil
	}
	now := m.now()
	if m.ttl > 0 && now.After(entry.expiresAt) {
		delete(m.sessions, sessionID)
		return Session{}, nil
	}
	entry.expiresAt = now.Add(m.ttl)
	m.sessions[sessionID] = entry
	return cloneSession(entry.session), nil
}

func (m *MemorySessionStore) Save(_ context.Context, sessionID string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s.UpdatedAt = now
	m.sessions[sessionID] = memoryEntry{session: cloneSession(s), expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func cloneSession(s Session) Session {
	out := s
	if s.TableID != nil {
		id := *s.TableID
		out.TableID = &id
	}
	out.Draft.Items = append(s.Draft.Items[:0:0], s.Draft.Items...)
	return out
}
