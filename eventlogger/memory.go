package eventlogger

import (
	"sync"
	"time"
)

// MemoryStore is an in-process EventStore. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]Event)}
}

func (s *MemoryStore) InsertOrUpdate(key string, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Info = copyInfo(event.Info)
	s.events[key] = event
	return nil
}

func (s *MemoryStore) Retrieve(key string) (Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[key]
	if ok {
		e.Info = copyInfo(e.Info)
	}
	return e, ok, nil
}

func (s *MemoryStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]Event)
	return nil
}

func (s *MemoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

func (s *MemoryStore) GetAllEvents() (map[string]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Event, len(s.events))
	for k, e := range s.events {
		e.Info = copyInfo(e.Info)
		out[k] = e
	}
	return out, nil
}

// MemoryCache is an in-process TTLCache.
type MemoryCache struct {
	mu  sync.RWMutex
	ref time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) ReferenceTime() (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ref, nil
}

func (c *MemoryCache) SetReferenceTime(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref = t
	return nil
}
