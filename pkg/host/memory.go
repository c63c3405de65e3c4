package host

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage is an in-process Storage used by tests and the headless
// runner when persistence is disabled.
type MemoryStorage struct {
	mu       sync.RWMutex
	data     map[string]json.RawMessage
	watchers watcherSet
}

// NewMemoryStorage returns an empty in-memory storage area.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]json.RawMessage)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return cloneRaw(v), true, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	old := s.data[key]
	s.data[key] = cloneRaw(value)
	s.mu.Unlock()

	s.watchers.notify(StorageChange{Key: key, OldValue: old, NewValue: cloneRaw(value)})
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	old, ok := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()

	if ok {
		s.watchers.notify(StorageChange{Key: key, OldValue: old})
	}
	return nil
}

func (s *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStorage) Watch(fn func(StorageChange)) func() {
	return s.watchers.add(fn)
}

func (s *MemoryStorage) Close() error { return nil }

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
