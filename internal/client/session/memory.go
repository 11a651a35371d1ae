package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory only.
type MemoryStore struct {
	notifier

	mu      sync.RWMutex
	current *Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store whose Init yields seed (which may be nil).
func NewMemoryStore(seed *Session) *MemoryStore {
	return &MemoryStore{current: seed.clone()}
}

func (m *MemoryStore) Init(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Validate() != nil {
		m.current = nil
	}
	return m.current.clone(), nil
}

func (m *MemoryStore) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

func (m *MemoryStore) Set(_ context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()

	m.publish(&s)
	return nil
}

func (m *MemoryStore) Patch(_ context.Context, p Patch) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	next := p.apply(*m.current)
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = &next
	m.mu.Unlock()

	m.publish(&next)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.publish(nil)
	return nil
}
