package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/skycms/skycms/internal/foundation/errors"
)

// MemoryStore is an in-memory ArtifactStore for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]byte
	calls     MemoryCalls

	// failWrites makes the next N writes fail with a retryable storage
	// error, for exercising retry behavior.
	failWrites int
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Write  int
	Read   int
	Exists int
	Delete int
	List   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[string]map[string][]byte)}
}

// FailNextWrites makes the next n Write calls fail with a retryable
// storage error.
func (m *MemoryStore) FailNextWrites(n int) {
	m.mu.Lock()
	m.failWrites = n
	m.mu.Unlock()
}

func (m *MemoryStore) Write(ctx context.Context, tenantID, artifactPath string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Write++

	if m.failWrites > 0 {
		m.failWrites--
		return errors.StorageError("injected write failure").
			WithContext("path", artifactPath).
			Build()
	}

	tree, ok := m.artifacts[tenantID]
	if !ok {
		tree = make(map[string][]byte)
		m.artifacts[tenantID] = tree
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	tree[artifactPath] = stored
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, tenantID, artifactPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Read++

	data, ok := m.artifacts[tenantID][artifactPath]
	if !ok {
		return nil, errors.NotFoundError("artifact not found").
			WithContext("path", artifactPath).
			Build()
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Exists(ctx context.Context, tenantID, artifactPath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++

	_, ok := m.artifacts[tenantID][artifactPath]
	return ok, nil
}

func (m *MemoryStore) Delete(ctx context.Context, tenantID, artifactPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++

	delete(m.artifacts[tenantID], artifactPath)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, tenantID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++

	var paths []string
	for p := range m.artifacts[tenantID] {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Calls returns the number of times each method was called.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
