package kv

import (
	"context"
	"sync"
)

// Memory keeps values in process memory. Used by tests and by hosts that
// do not need values to survive a restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Load returns a copy of the value, or ErrNotFound.
func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Save stores a copy of value, replacing any previous one.
func (m *Memory) Save(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}
