package storage

import (
	"slices"
	"strings"
	"sync"
)

// Store is the in-memory image of committed state. Only Service mutates it,
// and only while holding Service.writeMu.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Data returns a shallow copy of the committed key space.
func (s *Store) Data() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

func (s *Store) Replace(data map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

func (s *Store) apply(ops []op) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ops {
		if o.deleted {
			delete(s.data, o.key)
			continue
		}
		s.data[o.key] = o.value
	}
}

// get and keysWithPrefix expect the caller to hold mu or Service.writeMu.
func (s *Store) get(key string) ([]byte, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *Store) keysWithPrefix(prefix string) []string {
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
