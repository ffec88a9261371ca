package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. With a positive TTL a
// client's data expires TTL after its last write.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*memoryEntry
}

type memoryEntry struct {
	values  map[string][]byte
	expires time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store. ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		clients: make(map[string]*memoryEntry),
	}
}

// SetClock replaces the time source; tests use it to drive expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// entry returns the live entry of clientID, dropping it if expired.
// Callers hold s.mu.
func (s *MemoryStore) entry(clientID string) *memoryEntry {
	e, ok := s.clients[clientID]
	if !ok {
		return nil
	}
	if s.ttl > 0 && !s.now().Before(e.expires) {
		delete(s.clients, clientID)
		return nil
	}
	return e
}

func (s *MemoryStore) Get(_ context.Context, clientID, key string, dst any) (bool, error) {
	s.mu.Lock()
	var raw []byte
	if e := s.entry(clientID); e != nil {
		raw = e.values[key]
	}
	s.mu.Unlock()

	if raw == nil {
		return false, nil
	}
	return true, decode(key, raw, dst)
}

func (s *MemoryStore) Set(_ context.Context, clientID, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(clientID)
	if e == nil {
		e = &memoryEntry{values: make(map[string][]byte)}
		s.clients[clientID] = e
	}
	e.values[key] = raw
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, clientID string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(clientID); e != nil {
		for _, k := range keys {
			delete(e.values, k)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, clientID string) error {
	s.mu.Lock()
	delete(s.clients, clientID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live clients.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.clients {
		if s.entry(id) != nil {
			n++
		}
	}
	return n
}
