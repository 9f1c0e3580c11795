package memory

import (
	"context"
	"sync"

	apperrors "github.com/transport-saas-ms/console/pkg/errors"
)

// KV is an in-process key-value store. Nothing survives a restart.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewKV creates an empty store.
func NewKV() *KV {
	return &KV{data: make(map[string]string)}
}

func (m *KV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return "", apperrors.ErrKeyNotFound
	}
	return v, nil
}

func (m *KV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *KV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (m *KV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
