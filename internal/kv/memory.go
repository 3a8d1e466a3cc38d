package kv

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Backend. It is the degraded mode used when no
// durable storage is available, and the backend most store tests run on.
//
// SetUnavailable simulates storage that rejects writes (quota exceeded,
// private browsing) so failure paths can be exercised.
type Memory struct {
	mu          sync.RWMutex
	data        map[string][]byte
	unavailable bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// SetUnavailable toggles simulated storage failure.
func (m *Memory) SetUnavailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = v
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return nil, fmt.Errorf("kv get %q: %w", key, ErrUnavailable)
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value under key.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return fmt.Errorf("kv put %q: %w", key, ErrUnavailable)
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return fmt.Errorf("kv delete %q: %w", key, ErrUnavailable)
	}
	delete(m.data, key)
	return nil
}

// Apply performs ops under a single lock.
func (m *Memory) Apply(_ context.Context, ops ...Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return fmt.Errorf("kv apply: %w", ErrUnavailable)
	}
	for _, op := range ops {
		if op.Delete {
			delete(m.data, op.Key)
			continue
		}
		m.data[op.Key] = append([]byte(nil), op.Value...)
	}
	return nil
}

// Probe fails while the backend is marked unavailable.
func (m *Memory) Probe(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return fmt.Errorf("kv probe: %w", ErrUnavailable)
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored keys. Used by tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
