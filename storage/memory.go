package storage

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe in-memory store. It lives as long as the
// process, which makes it the natural session-scoped backend.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  int
	used   int
}

type MemoryOption func(*MemoryStore)

// WithQuota caps the total bytes held. Writes that would exceed it fail with
// ErrQuotaExceeded, the way browser storage does.
func WithQuota(bytes int) MemoryOption {
	return func(s *MemoryStore) {
		if bytes > 0 {
			s.quota = bytes
		}
	}
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{values: make(map[string][]byte)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if s == nil {
		return ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used - len(s.values[key]) + len(value)
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded.Clone().WithMetadata(map[string]any{
			"key":   key,
			"quota": s.quota,
			"size":  next,
		})
	}
	s.values[key] = append([]byte(nil), value...)
	s.used = next
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return ErrStoreUnavailable
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used -= len(s.values[key])
	delete(s.values, key)
	return nil
}

// Keys returns the stored keys, mostly for assertions and debugging.
func (s *MemoryStore) Keys() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}
