package kv

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps slots in process memory. It is used by tests and as the
// fallback when no durable backend is available.
type Memory struct {
	mu    sync.Mutex
	slots map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.slots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.slots[key] = slices.Clone(value)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
