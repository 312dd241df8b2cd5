package session

import (
	"sync"
	"time"
)

// MemoryStore keeps the raw session entry in memory. It is the store used by
// tests and by clients started with persistence disabled.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
	now func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Save(roomID, username string) error {
	raw, err := encode(roomID, username, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load() (Session, bool) {
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()
	return decode(raw)
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.raw = nil
	s.mu.Unlock()
	return nil
}

// SetRaw replaces the stored bytes verbatim, bypassing encoding. Useful for
// seeding a store with a foreign or corrupt entry.
func (s *MemoryStore) SetRaw(raw []byte) {
	s.mu.Lock()
	s.raw = append([]byte(nil), raw...)
	s.mu.Unlock()
}
