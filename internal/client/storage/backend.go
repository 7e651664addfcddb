// Package storage persists credentials, the cached profile and the last
// activity time across an ordered chain of key/value backends.
//
// Writes go to every backend (a failing backend never stops the others);
// reads walk the chain and return the first non-empty value. The chain is
// built once at startup, typically as:
//
//	primary: SealedBackend(RepositoryBackend(metadata table))
//	fallback: RepositoryBackend(legacy_storage table)
package storage

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/reviewdesk/internal/client/repositories/metadata"
)

// Backend is one link of the storage chain. Get returns (nil, nil) for an
// absent key.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}

// RepositoryBackend adapts a metadata repository to Backend.
type RepositoryBackend struct {
	name string
	repo metadata.Repository
}

func NewRepositoryBackend(name string, repo metadata.Repository) *RepositoryBackend {
	return &RepositoryBackend{name: name, repo: repo}
}

func (b *RepositoryBackend) Name() string { return b.name }

func (b *RepositoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return b.repo.Get(ctx, key)
}

func (b *RepositoryBackend) SetMany(ctx context.Context, values map[string][]byte) error {
	return b.repo.SetMany(ctx, values)
}

func (b *RepositoryBackend) Delete(ctx context.Context, keys ...string) error {
	return b.repo.Delete(ctx, keys...)
}

// MemoryBackend keeps values in process memory. Used for ephemeral sessions
// and in tests.
type MemoryBackend struct {
	name string
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{name: name, data: make(map[string][]byte)}
}

func (m *MemoryBackend) Name() string { return m.name }

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) SetMany(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Keys returns the stored keys; handy for assertions.
func (m *MemoryBackend) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
