package learning

import (
	"context"
	"sync"
)

// Collections owned by the learning system. Each is an independently
// keyed map of string key to JSON record.
const (
	CollectionTemplates   = "templates"
	CollectionCorrections = "corrections"
	CollectionPatterns    = "common_patterns"
)

// Store is the injectable persistence adapter: a durable key-value
// facility with named collections. Implementations must be safe for
// concurrent readers; the learning system serializes writes itself.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, bool, error)
	Put(ctx context.Context, collection, key string, value []byte) error
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string) (map[string][]byte, error)
	Close() error
}

// MemoryStore is the in-memory Store used by tests and by callers that
// opt out of persistence.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[collection][key]
	if !ok {
		return nil, false, nil
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, true, nil
}

func (s *MemoryStore) Put(_ context.Context, collection, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[collection] == nil {
		s.data[collection] = make(map[string][]byte)
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	s.data[collection][key] = copied
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.data[collection]))
	for k, v := range s.data[collection] {
		copied := make([]byte, len(v))
		copy(copied, v)
		out[k] = copied
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
