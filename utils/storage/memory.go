package storage

import (
	"context"
	"sync"
	"time"

	"github.com/kris-hansen/analyst/utils/session"
)

type memoryEntry struct {
	data    []byte
	summary session.Summary
	savedAt time.Time
}

// MemoryStore keeps sessions in process. Entries idle for longer than the TTL
// are dropped on the next access.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store; ttl <= 0 keeps sessions forever
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.savedAt) > m.ttl
}

// Get returns a copy of the stored session
func (m *MemoryStore) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	if m.expired(e) {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
		return nil, notFound(id)
	}
	return decode(id, e.data)
}

// Save stores a copy of s, replacing any earlier version
func (m *MemoryStore) Save(_ context.Context, s *session.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.ID] = memoryEntry{data: data, summary: s.Summarize(), savedAt: m.now()}
	return nil
}

// Delete removes a session; deleting a missing session is not an error
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// List returns the live sessions, most recently updated first
func (m *MemoryStore) List(_ context.Context) ([]session.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]session.Summary, 0, len(m.entries))
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
			continue
		}
		out = append(out, e.summary)
	}
	sortSummaries(out)
	return out, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
